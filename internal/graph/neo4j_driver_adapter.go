//go:build neo4j

package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// driverAdapter adapts the official Neo4j driver to the narrow
// neo4jDriver interface this package depends on, so the default build
// never pulls in the driver's network/TLS machinery.
type driverAdapter struct {
	driver neo4j.DriverWithContext
}

// WrapNeo4jDriver adapts driver for use with NewNeo4jStore. Only
// compiled when building with -tags neo4j.
func WrapNeo4jDriver(driver neo4j.DriverWithContext) neo4jDriver {
	if driver == nil {
		return nil
	}
	return &driverAdapter{driver: driver}
}

func (d *driverAdapter) ExecuteWrite(ctx context.Context, database, query string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, d.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(database))
	return err
}

func (d *driverAdapter) ExecuteRead(ctx context.Context, database, query string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(database))
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		row := make(map[string]any, len(rec.Keys))
		for _, key := range rec.Keys {
			row[key], _ = rec.Get(key)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
