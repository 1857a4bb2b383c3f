package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

type MemgraphDriver struct {
	Driver neo4j.DriverWithContext
	logger *zap.Logger
}

func NewMemgraphDriver(ctx context.Context, uri, username, password string, logger *zap.Logger) (*MemgraphDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "driver.NewMemgraphDriver", err, "invalid bolt target %s", uri)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, errs.Wrap(errs.KindStoreUnavailable, "driver.NewMemgraphDriver", err, "memgraph unreachable at %s", uri)
	}

	logger.Info("Connected to Memgraph", zap.String("uri", uri))
	return &MemgraphDriver{Driver: driver, logger: logger}, nil
}

func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

// ExecuteQuery runs a query with an eager transformer. Connectivity failures
// surface as STORE_UNAVAILABLE.
func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		if neo4j.IsConnectivityError(err) || ctx.Err() != nil {
			return neo4j.EagerResult{}, errs.Wrap(errs.KindStoreUnavailable, "driver.ExecuteQuery", err, "memgraph connection failed")
		}
		var neoErr *neo4j.Neo4jError
		if errors.As(err, &neoErr) && strings.Contains(strings.ToLower(neoErr.Msg), "constraint") {
			return neo4j.EagerResult{}, errs.Wrap(errs.KindConflict, "driver.ExecuteQuery", err, "constraint violation")
		}
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (d *MemgraphDriver) BuildIndices(ctx context.Context) error {
	for _, q := range SchemaQueries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			if errs.KindOf(err) == errs.KindStoreUnavailable {
				return err
			}
			// Memgraph rejects re-creating an existing index or constraint.
			d.logger.Debug("schema statement skipped", zap.String("query", q), zap.Error(err))
		}
	}
	return nil
}
