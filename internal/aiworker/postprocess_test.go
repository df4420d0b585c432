package aiworker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "plain email",
			text: "Заказ от Иванова, почта ivanov@example.com, срочно",
			want: "ivanov@example.com",
		},
		{
			name: "first of several",
			text: "a@b.ru потом c@d.com",
			want: "a@b.ru",
		},
		{
			name: "no email",
			text: "Заказ без почты",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, extractEmail(tt.text))
		})
	}
}

func TestPickAddress(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "line with most commas wins",
			text: "Нужны запчасти\nРоссия, г. Москва, ул. Ленина, д. 1, кв. 5\nг. Тверь, склад",
			want: "Россия, г. Москва, ул. Ленина, д. 1, кв. 5",
		},
		{
			name: "short lines skipped",
			text: "г. Москва\nРоссия, г. Санкт-Петербург, Невский проспект 1",
			want: "Россия, г. Санкт-Петербург, Невский проспект 1",
		},
		{
			name: "no address markers",
			text: "просто текст про запчасти без адреса вообще",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, pickAddress(tt.text))
		})
	}
}

func TestPatchDeadlineYear(t *testing.T) {
	tests := []struct {
		deadline string
		want     string
	}{
		{deadline: "2024-05-01", want: "2026-05-01"},
		{deadline: "2025-12-31", want: "2026-12-31"},
		{deadline: "2026-03-15", want: "2026-03-15"},
		{deadline: "2027-01-01", want: "2027-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.deadline, func(t *testing.T) {
			require.Equal(t, tt.want, patchDeadlineYear(tt.deadline, 2026))
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want time.Duration
	}{
		{
			name: "seconds hint",
			msg:  "Rate limit reached. Please try again in 2s.",
			want: 2 * time.Second,
		},
		{
			name: "fractional seconds",
			msg:  "Please try again in 2.5s.",
			want: 2500 * time.Millisecond,
		},
		{
			name: "milliseconds hint",
			msg:  "Please try again in 500ms.",
			want: 500 * time.Millisecond,
		},
		{
			name: "long hints collapse",
			msg:  "Please try again in 7.66s.",
			want: 1500 * time.Millisecond,
		},
		{
			name: "no hint defaults to a second",
			msg:  "Internal server error",
			want: time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parseRetryAfter(tt.msg))
		})
	}
}

func TestKeyPool(t *testing.T) {
	pool := newKeyPool([]string{"gsk_first", "", "not-a-key", "gsk_second"}, "gsk_")
	require.Equal(t, 2, pool.Len(), "placeholders and foreign keys are dropped")

	key, err := pool.Current()
	require.NoError(t, err)
	require.Equal(t, "gsk_first", key)

	pool.Advance()
	key, _ = pool.Current()
	require.Equal(t, "gsk_second", key)

	// Wraps around.
	pool.Advance()
	key, _ = pool.Current()
	require.Equal(t, "gsk_first", key)

	require.Equal(t, "gsk_firs...", pool.Masked())
}

func TestKeyPool_Empty(t *testing.T) {
	pool := newKeyPool([]string{"", "wrong"}, "gsk_")
	require.Equal(t, 0, pool.Len())

	_, err := pool.Current()
	require.ErrorIs(t, err, ErrNoKeys)
	require.Equal(t, "none", pool.Masked())
}
