package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
)

// sqlTx implements Tx on a DuckDB transaction.
type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqlTx) exec(query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(t.ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err)
	}
	return res, nil
}

func (t *sqlTx) nextSeq() (int64, error) {
	var seq int64
	if err := t.tx.QueryRowContext(t.ctx, `SELECT nextval('entity_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next sequence: %w", mapSQLError(err))
	}
	return seq, nil
}

// expectRow turns "0 rows affected" into a not-found error.
func expectRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NewNotFound(entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// =============================================================================
// Hierarchy Lock
// =============================================================================

// LockHierarchy writes the single hierarchy_lock row. DuckDB aborts the
// second of two concurrent transactions that update the same row.
func (t *sqlTx) LockHierarchy() error {
	if _, err := t.exec(`UPDATE hierarchy_lock SET version = version + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("lock hierarchy: %w", err)
	}
	return nil
}

// =============================================================================
// Storages
// =============================================================================

const storageColumns = `id, seq, name, description, parent_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStorage(row rowScanner) (*Storage, error) {
	var s Storage
	var parent sql.NullString
	if err := row.Scan(&s.ID, &s.Seq, &s.Name, &s.Description, &parent, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.ParentID = parent.String
	return &s, nil
}

func (t *sqlTx) queryStorages(query string, args ...any) ([]*Storage, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query storages: %w", mapSQLError(err))
	}
	defer rows.Close()

	var out []*Storage
	for rows.Next() {
		s, err := scanStorage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan storage: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *sqlTx) GetStorage(id string) (*Storage, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+storageColumns+` FROM storages WHERE id = ?`, id)
	s, err := scanStorage(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("storage", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query storage: %w", mapSQLError(err))
	}
	return s, nil
}

func (t *sqlTx) RootStorages() ([]*Storage, error) {
	return t.queryStorages(`SELECT ` + storageColumns + ` FROM storages WHERE parent_id IS NULL ORDER BY seq`)
}

func (t *sqlTx) ChildStorages(parentID string) ([]*Storage, error) {
	return t.queryStorages(`SELECT `+storageColumns+` FROM storages WHERE parent_id = ? ORDER BY seq`, parentID)
}

func (t *sqlTx) InsertStorage(s *Storage) error {
	seq, err := t.nextSeq()
	if err != nil {
		return err
	}
	_, err = t.exec(`
		INSERT INTO storages (id, seq, name, description, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, seq, s.Name, s.Description, nullString(s.ParentID), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert storage: %w", err)
	}
	s.Seq = seq
	return nil
}

func (t *sqlTx) UpdateStorage(s *Storage) error {
	res, err := t.exec(`
		UPDATE storages SET name = ?, description = ?, parent_id = ?, updated_at = ?
		WHERE id = ?
	`, s.Name, s.Description, nullString(s.ParentID), s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update storage: %w", err)
	}
	return expectRow(res, "storage", s.ID)
}

func (t *sqlTx) DeleteStorage(id string) error {
	res, err := t.exec(`DELETE FROM storages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	return expectRow(res, "storage", id)
}

// =============================================================================
// Spaces
// =============================================================================

const spaceColumns = `id, seq, name, size, description, storage_id, created_at, updated_at`

func scanSpace(row rowScanner) (*Space, error) {
	var s Space
	var size sql.NullFloat64
	if err := row.Scan(&s.ID, &s.Seq, &s.Name, &size, &s.Description, &s.StorageID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Size = floatPtr(size)
	return &s, nil
}

func (t *sqlTx) querySpaces(query string, args ...any) ([]*Space, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query spaces: %w", mapSQLError(err))
	}
	defer rows.Close()

	var out []*Space
	for rows.Next() {
		s, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *sqlTx) GetSpace(id string) (*Space, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+spaceColumns+` FROM spaces WHERE id = ?`, id)
	s, err := scanSpace(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("space", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query space: %w", mapSQLError(err))
	}
	return s, nil
}

func (t *sqlTx) ListSpaces() ([]*Space, error) {
	return t.querySpaces(`SELECT ` + spaceColumns + ` FROM spaces ORDER BY seq`)
}

func (t *sqlTx) SpacesOf(storageID string) ([]*Space, error) {
	return t.querySpaces(`SELECT `+spaceColumns+` FROM spaces WHERE storage_id = ? ORDER BY seq`, storageID)
}

func (t *sqlTx) InsertSpace(s *Space) error {
	seq, err := t.nextSeq()
	if err != nil {
		return err
	}
	_, err = t.exec(`
		INSERT INTO spaces (id, seq, name, size, description, storage_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, seq, s.Name, nullFloat(s.Size), s.Description, s.StorageID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert space: %w", err)
	}
	s.Seq = seq
	return nil
}

func (t *sqlTx) UpdateSpace(s *Space) error {
	res, err := t.exec(`
		UPDATE spaces SET name = ?, size = ?, description = ?, storage_id = ?, updated_at = ?
		WHERE id = ?
	`, s.Name, nullFloat(s.Size), s.Description, s.StorageID, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update space: %w", err)
	}
	return expectRow(res, "space", s.ID)
}

func (t *sqlTx) DeleteSpace(id string) error {
	res, err := t.exec(`DELETE FROM spaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete space: %w", err)
	}
	return expectRow(res, "space", id)
}

// =============================================================================
// Products
// =============================================================================

const productColumns = `id, seq, name, price, description, space_id, created_at, updated_at`

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	var price sql.NullFloat64
	if err := row.Scan(&p.ID, &p.Seq, &p.Name, &price, &p.Description, &p.SpaceID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Price = floatPtr(price)
	return &p, nil
}

func (t *sqlTx) queryProducts(query string, args ...any) ([]*Product, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", mapSQLError(err))
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *sqlTx) GetProduct(id string) (*Product, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", mapSQLError(err))
	}
	return p, nil
}

func (t *sqlTx) ListProducts() ([]*Product, error) {
	return t.queryProducts(`SELECT ` + productColumns + ` FROM products ORDER BY seq`)
}

func (t *sqlTx) ProductsOf(spaceID string) ([]*Product, error) {
	return t.queryProducts(`SELECT `+productColumns+` FROM products WHERE space_id = ? ORDER BY seq`, spaceID)
}

func (t *sqlTx) InsertProduct(p *Product) error {
	seq, err := t.nextSeq()
	if err != nil {
		return err
	}
	_, err = t.exec(`
		INSERT INTO products (id, seq, name, price, description, space_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, seq, p.Name, nullFloat(p.Price), p.Description, p.SpaceID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.Seq = seq
	return nil
}

func (t *sqlTx) UpdateProduct(p *Product) error {
	res, err := t.exec(`
		UPDATE products SET name = ?, price = ?, description = ?, space_id = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, nullFloat(p.Price), p.Description, p.SpaceID, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return expectRow(res, "product", p.ID)
}

func (t *sqlTx) DeleteProduct(id string) error {
	res, err := t.exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectRow(res, "product", id)
}

// =============================================================================
// Attributes
// =============================================================================

const attributeColumns = `product_id, attr_key, value_type, value_text, value_number, value_bool, updated_at`

func scanAttribute(row rowScanner) (*Attribute, error) {
	var a Attribute
	var kind string
	var text sql.NullString
	var num sql.NullFloat64
	var b sql.NullBool
	if err := row.Scan(&a.ProductID, &a.Key, &kind, &text, &num, &b, &a.UpdatedAt); err != nil {
		return nil, err
	}

	k, err := ParseValueKind(kind)
	if err != nil {
		return nil, fmt.Errorf("attribute %s/%s: %w", a.ProductID, a.Key, err)
	}
	switch k {
	case KindText:
		a.Value = Text(text.String)
	case KindNumber:
		a.Value = Number(num.Float64)
	case KindBool:
		a.Value = Bool(b.Bool)
	}
	return &a, nil
}

// valueColumns splits a Value into its typed columns.
func valueColumns(v Value) (string, sql.NullString, sql.NullFloat64, sql.NullBool) {
	var text sql.NullString
	var num sql.NullFloat64
	var b sql.NullBool
	switch v.Kind() {
	case KindText:
		s, _ := v.AsText()
		text = sql.NullString{String: s, Valid: true}
	case KindNumber:
		f, _ := v.AsNumber()
		num = sql.NullFloat64{Float64: f, Valid: true}
	case KindBool:
		x, _ := v.AsBool()
		b = sql.NullBool{Bool: x, Valid: true}
	}
	return v.Kind().String(), text, num, b
}

func (t *sqlTx) GetAttribute(productID, key string) (*Attribute, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+attributeColumns+` FROM attributes WHERE product_id = ? AND attr_key = ?`, productID, key)
	a, err := scanAttribute(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("attribute", productID+"/"+key)
	}
	if err != nil {
		return nil, fmt.Errorf("query attribute: %w", mapSQLError(err))
	}
	return a, nil
}

func (t *sqlTx) AttributesOf(productID string) ([]*Attribute, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT `+attributeColumns+` FROM attributes WHERE product_id = ? ORDER BY attr_key`, productID)
	if err != nil {
		return nil, fmt.Errorf("query attributes: %w", mapSQLError(err))
	}
	defer rows.Close()

	var out []*Attribute
	for rows.Next() {
		a, err := scanAttribute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PutAttribute updates in place and falls back to an insert. An UPDATE of
// non-key columns avoids DuckDB's delete+insert path for indexed rows.
func (t *sqlTx) PutAttribute(a *Attribute) error {
	if !a.Value.IsValid() {
		return errors.NewValidation("attribute value", "missing or non-finite")
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	kind, text, num, b := valueColumns(a.Value)

	res, err := t.exec(`
		UPDATE attributes SET value_type = ?, value_text = ?, value_number = ?, value_bool = ?, updated_at = ?
		WHERE product_id = ? AND attr_key = ?
	`, kind, text, num, b, a.UpdatedAt, a.ProductID, a.Key)
	if err != nil {
		return fmt.Errorf("update attribute: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}

	_, err = t.exec(`
		INSERT INTO attributes (`+attributeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ProductID, a.Key, kind, text, num, b, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert attribute: %w", err)
	}
	return nil
}

func (t *sqlTx) DeleteAttribute(productID, key string) (bool, error) {
	res, err := t.exec(`DELETE FROM attributes WHERE product_id = ? AND attr_key = ?`, productID, key)
	if err != nil {
		return false, fmt.Errorf("delete attribute: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
