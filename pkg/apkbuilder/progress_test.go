package apkbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgressNeverDecreases(t *testing.T) {
	type event struct {
		percent int
		label   string
	}
	var got []event

	p := newProgressTracker(func(percent int, label string) { got = append(got, event{percent, label}) })
	p.report(0, "start")
	p.report(30, "work")
	p.report(20, "late")
	p.report(30, "work")
	p.report(150, "done")

	require.Equal(t, []event{{0, "start"}, {30, "work"}, {30, "late"}, {30, "work"}, {100, "done"}}, got)
}

func TestProgressNilCallback(t *testing.T) {
	p := newProgressTracker(nil)
	require.NotPanics(t, func() { p.report(50, "half") })
}
