package evmprobe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestResolverOptions(t *testing.T) {
	t.Run("NilLoggerKeepsDefault", func(t *testing.T) {
		r := NewResolver(nil, WithLogger(nil))
		if r.logger == nil {
			t.Fatal("logger must never be nil")
		}
	})

	t.Run("LoggerReceivesAttempts", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		r := NewResolver(&fakeCaller{}, WithLogger(logger))
		r.Resolve(context.Background(), common.Address{}, CurrentRound)

		if !strings.Contains(buf.String(), "currentRound") {
			t.Errorf("expected the candidate in the log, got %q", buf.String())
		}
	})

	t.Run("Submitter", func(t *testing.T) {
		s := &fakeSubmitter{}
		r := NewResolver(nil, WithSubmitter(s))
		if r.submitter != s {
			t.Error("submitter not set")
		}
	})
}
