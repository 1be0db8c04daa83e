package vecstore

import (
	"context"
	"log/slog"

	"github.com/ddunnock/sekb-go/internal/kberr"
)

// SelectorConfig tells Select which backends are available and which one
// the operator prefers.
type SelectorConfig struct {
	// Preferred names the store to try first: "qdrant" or "sqlite".
	// Defaults to "qdrant" when a Qdrant config is present, else "sqlite".
	Preferred string

	// Pinned, when true, means the operator explicitly chose a single
	// store: any failure propagates and fallback never happens.
	Pinned bool

	// Qdrant configures the networked primary store; nil means not configured.
	Qdrant *QdrantConfig

	// SQLite configures the local secondary store; nil means not configured.
	SQLite *SQLiteConfig
}

// Select chooses a live VectorStore. It constructs the preferred store and
// probes its health; on a transient failure (connectivity, auth, rate
// limit) it logs a warning naming the failed store and the reason, then
// tries the alternate. Configuration errors — malformed parameters, a
// pinned store, no alternate configured — propagate directly and are never
// converted into a fallback. When both stores are unusable, Select returns
// a connection-class error naming both.
//
// Health is probed once here, at construction time, not per query: a small
// staleness window is the price of keeping probes off the query path.
func Select(ctx context.Context, cfg *SelectorConfig, log *slog.Logger) (VectorStore, error) {
	const op = "vecstore.Select"

	if cfg == nil || (cfg.Qdrant == nil && cfg.SQLite == nil) {
		return nil, kberr.New(kberr.KindValidation, op, "no vector store configured")
	}

	preferred := cfg.Preferred
	if preferred == "" {
		if cfg.Qdrant != nil {
			preferred = "qdrant"
		} else {
			preferred = "sqlite"
		}
	}

	primary, alternate, err := buildOrder(cfg, preferred)
	if err != nil {
		return nil, err
	}

	return selectCandidates(ctx, primary, alternate, cfg.Pinned, log)
}

// selectCandidates runs the fallback algorithm over resolved candidates.
func selectCandidates(ctx context.Context, primary, alternate *candidate, pinned bool, log *slog.Logger) (VectorStore, error) {
	const op = "vecstore.Select"

	store, primaryErr := open(ctx, primary)
	if primaryErr == nil {
		return store, nil
	}

	// Pinned stores and configuration errors never fall back.
	if pinned || !kberr.Transient(primaryErr) {
		return nil, primaryErr
	}
	if alternate == nil {
		return nil, primaryErr
	}

	log.Warn("vector store unavailable, falling back",
		slog.String("store", primary.name),
		slog.String("fallback", alternate.name),
		slog.Any("reason", primaryErr),
	)

	store, alternateErr := open(ctx, alternate)
	if alternateErr == nil {
		return store, nil
	}
	if !kberr.Transient(alternateErr) {
		return nil, alternateErr
	}

	return nil, kberr.New(kberr.KindConnection, op,
		"no usable vector store: %s failed (%v); %s failed (%v)",
		primary.name, primaryErr, alternate.name, alternateErr)
}

// candidate pairs a store label with its constructor.
type candidate struct {
	name string
	open func(ctx context.Context) (VectorStore, error)
}

// buildOrder resolves the primary and alternate candidates for the given
// preference. An unknown preference or a preference for an unconfigured
// store is a configuration error.
func buildOrder(cfg *SelectorConfig, preferred string) (*candidate, *candidate, error) {
	const op = "vecstore.Select"

	var qdrantCand, sqliteCand *candidate
	if cfg.Qdrant != nil {
		qc := cfg.Qdrant
		qdrantCand = &candidate{
			name: "qdrant",
			open: func(ctx context.Context) (VectorStore, error) { return NewQdrantStore(ctx, qc) },
		}
	}
	if cfg.SQLite != nil {
		sc := cfg.SQLite
		sqliteCand = &candidate{
			name: "sqlite",
			open: func(ctx context.Context) (VectorStore, error) { return NewSQLiteStore(ctx, sc) },
		}
	}

	switch preferred {
	case "qdrant":
		if qdrantCand == nil {
			return nil, nil, kberr.New(kberr.KindValidation, op, "preferred store qdrant is not configured")
		}
		return qdrantCand, sqliteCand, nil
	case "sqlite":
		if sqliteCand == nil {
			return nil, nil, kberr.New(kberr.KindValidation, op, "preferred store sqlite is not configured")
		}
		return sqliteCand, qdrantCand, nil
	default:
		return nil, nil, kberr.New(kberr.KindValidation, op, "unknown store preference %q", preferred)
	}
}

// open constructs a candidate and verifies its health probe. A store that
// constructs but reports unhealthy is closed and surfaced as a connection
// failure so the selector can fall back.
func open(ctx context.Context, c *candidate) (VectorStore, error) {
	const op = "vecstore.Select"

	store, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	if !store.HealthCheck(ctx) {
		_ = store.Close()
		return nil, kberr.New(kberr.KindConnection, op, "store %s failed its health probe", c.name)
	}
	return store, nil
}
