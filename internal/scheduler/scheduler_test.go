package scheduler

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsInvalidSpec(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.Register(context.Background(), Job{Name: "broken", Spec: "not a spec", Run: func(context.Context) error { return nil }})
	require.Error(t, err)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := New(zerolog.Nop())
	job := Job{Name: "poll", Spec: "@every 5m", Run: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(context.Background(), job))
	require.Error(t, s.Register(context.Background(), job))
}

func TestRunNowExecutesRegisteredJob(t *testing.T) {
	s := New(zerolog.Nop())
	runs := 0
	failure := errors.New("lms unavailable")
	require.NoError(t, s.Register(context.Background(), Job{
		Name: "poll",
		Spec: "@every 5m",
		Run: func(context.Context) error {
			runs++
			return failure
		},
	}))

	err := s.RunNow(context.Background(), "poll")
	require.ErrorIs(t, err, failure)
	require.Equal(t, 1, runs)

	require.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestStartAndStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.Register(context.Background(), Job{Name: "digest", Spec: "0 8 * * *", Run: func(context.Context) error { return nil }}))

	s.Start()
	<-s.Stop().Done()
}

func TestCronLoggerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	adapter := cronLogger{logger: zerolog.New(&buf)}

	adapter.Error(errors.New("boom"), "job panicked", "entry", 3)
	require.Contains(t, buf.String(), `"error":"boom"`)
	require.Contains(t, buf.String(), `"entry":3`)
	require.Contains(t, buf.String(), "job panicked")
}
