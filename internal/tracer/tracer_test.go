package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantNoop bool
	}{
		{name: "disabled", cfg: Config{Enabled: false}, wantNoop: true},
		{name: "noop exporter", cfg: Config{Enabled: true, Exporter: "noop"}, wantNoop: true},
		{name: "empty exporter", cfg: Config{Enabled: true}, wantNoop: true},
		{name: "stdout", cfg: Config{Enabled: true, Exporter: "stdout"}},
		{name: "unsupported", cfg: Config{Enabled: true, Exporter: "invalid"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = shutdown(context.Background()) }()

			if tt.wantNoop {
				_, ok := otel.GetTracerProvider().(noop.TracerProvider)
				assert.True(t, ok, "expected noop provider, got %T", otel.GetTracerProvider())
			}
		})
	}
}

func TestStartSpanAndEnd(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	_, okSpan := StartSpan(context.Background(), "ok-span")
	okSpan.SetAttributes(StringAttr("k", "v"), IntAttr("n", 1))
	End(okSpan, nil)

	_, errSpan := StartSpan(context.Background(), "err-span")
	End(errSpan, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "ok-span", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "err-span", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}
