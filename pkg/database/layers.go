package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"hikemap/pkg/features"
	"hikemap/pkg/layers"
)

// ErrDuplicateLayer rejects a second import under an identity key that is
// already stored.
var ErrDuplicateLayer = errors.New("layer already exists")

// ErrLayerNotFound reports a lookup for an unknown layer id.
var ErrLayerNotFound = errors.New("layer not found")

// featureChunkSize bounds one multi-row VALUES statement.  Sixteen columns
// per row keeps us well under every engine's bind-variable limit.
const featureChunkSize = 200

// placeholders renders the bind markers for one statement: "?" everywhere
// except PostgreSQL, which wants numbered "$n".
func (db *Database) placeholders(start, n int) string {
	marks := make([]string, n)
	for i := range marks {
		if db.Driver == "pgx" {
			marks[i] = fmt.Sprintf("$%d", start+i)
		} else {
			marks[i] = "?"
		}
	}
	return strings.Join(marks, ",")
}

func encodeGeometry(g orb.Geometry) (string, error) {
	b, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode geometry: %w", err)
	}
	return string(b), nil
}

func decodeGeometry(s string) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	return g.Geometry(), nil
}

// SaveLayer stores a layer and all its features in one transaction,
// rejecting duplicates by composite identity key.  On PostgreSQL the
// features go through COPY instead of multi-row VALUES.
func (db *Database) SaveLayer(ctx context.Context, l *layers.Layer) error {
	id := l.ID()

	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save layer: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM layers WHERE id = `+db.placeholders(1, 1), id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("probe layer %s: %w", id, err)
	}
	if exists > 0 {
		return ErrDuplicateLayer
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO layers (id, kind, source_url, name, admin_id, opacity, visible, min_x, min_y, max_x, max_y, created_at)
VALUES (`+db.placeholders(1, 12)+`)`,
		id, string(l.Kind), l.SourceURL, l.Name, l.AdminID, l.Opacity, boolInt(l.Visible),
		l.Extent.Min[0], l.Extent.Min[1], l.Extent.Max[0], l.Extent.Max[1],
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert layer %s: %w", id, err)
	}

	if db.Driver == "pgx" {
		// COPY needs its own connection, so commit the layer row first.
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit layer %s: %w", id, err)
		}
		if err := db.insertFeaturesPostgreSQLCopy(ctx, id, l.Features); err != nil {
			// Take the committed layer row back out, otherwise a retry of
			// the same import is refused as a duplicate.
			db.removeLayerRow(id)
			return err
		}
		return nil
	}

	if err := db.insertFeaturesTx(ctx, tx, id, l.Features); err != nil {
		return err
	}
	return tx.Commit()
}

// removeLayerRow deletes just the layers row.  Compensation for the COPY
// path, where the row is committed before the features land; runs on a
// detached context so a cancelled request still cleans up.
func (db *Database) removeLayerRow(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.DB.ExecContext(ctx,
		`DELETE FROM layers WHERE id = `+db.placeholders(1, 1), id); err != nil {
		log.Printf("cleanup of layer %s after failed feature insert: %v", id, err)
	}
}

// insertFeaturesTx bulk-inserts features as multi-row VALUES chunks inside
// the caller's transaction.
func (db *Database) insertFeaturesTx(ctx context.Context, tx *sql.Tx, layerID string, feats []*features.EditableFeature) error {
	const columns = 16

	for offset := 0; offset < len(feats); offset += featureChunkSize {
		chunk := feats[offset:min(offset+featureChunkSize, len(feats))]

		var (
			sb   strings.Builder
			args = make([]any, 0, len(chunk)*columns)
		)
		sb.WriteString(`INSERT INTO features (id, layer_id, feature_id, feature_type, title, description, fill_color, text_color, text_size, icon_set, icon_name, icon_url, icon_anchor_x, icon_anchor_y, icon_size, geometry) VALUES `)

		for i, f := range chunk {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(" + db.placeholders(len(args)+1, columns) + ")")

			row, err := featureRow(db.NextID(), layerID, f)
			if err != nil {
				return err
			}
			args = append(args, row...)
		}

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("insert features for %s: %w", layerID, err)
		}
	}
	return nil
}

// featureRow flattens one feature into insert values, column order matching
// insertFeaturesTx and the COPY path.
func featureRow(id int64, layerID string, f *features.EditableFeature) ([]any, error) {
	geom, err := encodeGeometry(f.Geometry)
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", f.ID, err)
	}

	var (
		iconSet, iconName, iconURL, iconSize string
		anchorX, anchorY                     float64
	)
	if f.Icon != nil {
		iconSet, iconName, iconURL = f.Icon.Set, f.Icon.Name, f.Icon.URL
		anchorX, anchorY = f.Icon.Anchor[0], f.Icon.Anchor[1]
		iconSize = f.IconSize.Label
	}

	return []any{
		id, layerID, f.ID, string(f.FeatureType), f.Title, f.Description,
		f.FillColor.Name, f.TextColor.Name, f.TextSize.Label,
		iconSet, iconName, iconURL, anchorX, anchorY, iconSize, geom,
	}, nil
}

// scanFeature rebuilds a feature from its stored row.
func scanFeature(rows *sql.Rows) (*features.EditableFeature, error) {
	var (
		f                                    features.EditableFeature
		featureType, fillName, textName      string
		textSize                             string
		iconSet, iconName, iconURL, iconSize string
		anchorX, anchorY                     float64
		geom                                 string
	)
	err := rows.Scan(&f.ID, &featureType, &f.Title, &f.Description,
		&fillName, &textName, &textSize,
		&iconSet, &iconName, &iconURL, &anchorX, &anchorY, &iconSize, &geom)
	if err != nil {
		return nil, fmt.Errorf("scan feature: %w", err)
	}

	f.FeatureType = features.Type(featureType)
	if c, ok := features.ColorFromName(fillName); ok {
		f.FillColor = c
	} else {
		f.FillColor = features.DefaultColor
	}
	if c, ok := features.ColorFromName(textName); ok {
		f.TextColor = c
	} else {
		f.TextColor = features.DefaultColor
	}
	f.TextSize = features.TextSizeFromLabel(textSize)

	if iconURL != "" {
		f.Icon = &features.ResolvedIcon{
			Set: iconSet, Name: iconName, URL: iconURL,
			Anchor: [2]float64{anchorX, anchorY},
		}
		size := features.IconSizeFromLabel(iconSize)
		f.IconSize = &size
	}

	g, err := decodeGeometry(geom)
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", f.ID, err)
	}
	f.Geometry = g
	f.Coordinates = features.Coordinates(g)
	return &f, nil
}

const featureColumns = `feature_id, feature_type, title, description, fill_color, text_color, text_size, icon_set, icon_name, icon_url, icon_anchor_x, icon_anchor_y, icon_size, geometry`

// GetLayer loads one layer with all its features.
func (db *Database) GetLayer(ctx context.Context, id string) (*layers.Layer, error) {
	l, err := db.scanLayerRow(db.DB.QueryRowContext(ctx,
		`SELECT kind, source_url, name, admin_id, opacity, visible, min_x, min_y, max_x, max_y
FROM layers WHERE id = `+db.placeholders(1, 1), id))
	if err != nil {
		return nil, err
	}

	rows, err := db.DB.QueryContext(ctx,
		`SELECT `+featureColumns+` FROM features WHERE layer_id = `+db.placeholders(1, 1)+` ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load features for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		l.Features = append(l.Features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load features for %s: %w", id, err)
	}
	return l, nil
}

func (db *Database) scanLayerRow(row *sql.Row) (*layers.Layer, error) {
	var (
		l       layers.Layer
		kind    string
		visible int
	)
	err := row.Scan(&kind, &l.SourceURL, &l.Name, &l.AdminID, &l.Opacity, &visible,
		&l.Extent.Min[0], &l.Extent.Min[1], &l.Extent.Max[0], &l.Extent.Max[1])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan layer: %w", err)
	}
	l.Kind = layers.Kind(kind)
	l.Visible = visible != 0
	l.HasExtent = true
	return &l, nil
}

// LayerSummary is one row of the layer listing, features excluded.
type LayerSummary struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	SourceURL string     `json:"sourceUrl,omitempty"`
	Name      string     `json:"name"`
	Features  int        `json:"features"`
	Extent    [4]float64 `json:"extent"`
	CreatedAt int64      `json:"createdAt"`
}

// ListLayers returns all stored layers, newest first.
func (db *Database) ListLayers(ctx context.Context) ([]LayerSummary, error) {
	rows, err := db.DB.QueryContext(ctx,
		`SELECT l.id, l.kind, l.source_url, l.name, l.min_x, l.min_y, l.max_x, l.max_y, l.created_at,
(SELECT COUNT(*) FROM features f WHERE f.layer_id = l.id)
FROM layers l ORDER BY l.created_at DESC, l.id`)
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	defer rows.Close()

	var out []LayerSummary
	for rows.Next() {
		var s LayerSummary
		if err := rows.Scan(&s.ID, &s.Kind, &s.SourceURL, &s.Name,
			&s.Extent[0], &s.Extent[1], &s.Extent[2], &s.Extent[3],
			&s.CreatedAt, &s.Features); err != nil {
			return nil, fmt.Errorf("scan layer summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteLayer removes a layer and its features.
func (db *Database) DeleteLayer(ctx context.Context, id string) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete layer: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM features WHERE layer_id = `+db.placeholders(1, 1), id); err != nil {
		return fmt.Errorf("delete features of %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM layers WHERE id = `+db.placeholders(1, 1), id)
	if err != nil {
		return fmt.Errorf("delete layer %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrLayerNotFound
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
