package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"hikemap/pkg/features"
)

// insertFeaturesPostgreSQLCopy streams a layer's features into PostgreSQL
// using COPY to keep big imports fast.  A temporary table lets the final
// INSERT enforce the main table's constraints without losing COPY's
// throughput.  The helper stays connection-local to avoid mutexes.
func (db *Database) insertFeaturesPostgreSQLCopy(ctx context.Context, layerID string, feats []*features.EditableFeature) error {
	if len(feats) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil || db.DB == nil {
		return fmt.Errorf("database unavailable")
	}

	conn, err := db.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open postgres connection: %w", err)
	}
	defer conn.Close()

	// The timestamp suffix keeps names unique per call while staying
	// predictable for debugging.  No ON COMMIT DROP: the temporary table
	// must survive autocommit between COPY and the final INSERT.
	tempTable := fmt.Sprintf("temp_features_%d", time.Now().UnixNano())
	createTemp := fmt.Sprintf(`CREATE TEMP TABLE %s (
id BIGINT,
layer_id TEXT,
feature_id TEXT,
feature_type TEXT,
title TEXT,
description TEXT,
fill_color TEXT,
text_color TEXT,
text_size TEXT,
icon_set TEXT,
icon_name TEXT,
icon_url TEXT,
icon_anchor_x DOUBLE PRECISION,
icon_anchor_y DOUBLE PRECISION,
icon_size TEXT,
geometry TEXT
)`, tempTable)
	if _, err := conn.ExecContext(ctx, createTemp); err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}

	// Cleanup must run even when COPY fails; a detached context keeps the
	// DROP from blocking shutdown when the caller's context is cancelled.
	dropCtx, dropCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer dropCancel()
	defer conn.ExecContext(dropCtx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tempTable))

	rows := make([][]interface{}, 0, len(feats))
	for _, f := range feats {
		row, err := featureRow(db.NextID(), layerID, f)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	columns := []string{"id", "layer_id", "feature_id", "feature_type", "title", "description",
		"fill_color", "text_color", "text_size",
		"icon_set", "icon_name", "icon_url", "icon_anchor_x", "icon_anchor_y", "icon_size", "geometry"}

	copyErr := conn.Raw(func(driverConn any) error {
		direct, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected postgres driver %T", driverConn)
		}
		_, err := direct.Conn().CopyFrom(
			ctx,
			pgx.Identifier{tempTable},
			columns,
			pgx.CopyFromRows(rows),
		)
		return err
	})
	if copyErr != nil {
		return fmt.Errorf("copy features into temp table: %w", copyErr)
	}

	insertFromTemp := fmt.Sprintf(`INSERT INTO features
(id,layer_id,feature_id,feature_type,title,description,fill_color,text_color,text_size,icon_set,icon_name,icon_url,icon_anchor_x,icon_anchor_y,icon_size,geometry)
SELECT id,layer_id,feature_id,feature_type,title,description,fill_color,text_color,text_size,icon_set,icon_name,icon_url,icon_anchor_x,icon_anchor_y,icon_size,geometry FROM %s
ON CONFLICT (id) DO NOTHING`, tempTable)
	if _, err := conn.ExecContext(ctx, insertFromTemp); err != nil {
		return fmt.Errorf("merge temp features: %w", err)
	}

	return nil
}
