package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository defines the persistence operations of the document store.
type Repository interface {
	EnsureDomain(ctx context.Context, domain string) error
	ListDomains(ctx context.Context) ([]string, error)
	SaveItems(ctx context.Context, items []SaveItem, author string) ([]SaveResult, error)
	LoadItems(ctx context.Context, domain string, refs []LoadRef) ([]LoadedItem, error)
	LoadItemsWithChildren(ctx context.Context, domain string, refs []LoadRef, listTag string) ([]LoadedItem, error)
	VersionInfo(ctx context.Context, domain string, uuids []string) (map[string]VersionInfo, error)
	ListItems(ctx context.Context, domain string, itemTypes []string) ([]ItemInfo, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed document repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// EnsureDomain creates the domain row if it does not exist yet.
func (r *SQLiteRepository) EnsureDomain(ctx context.Context, domain string) error {
	const query = `INSERT INTO domains (name) VALUES (?) ON CONFLICT (name) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, domain); err != nil {
		return fmt.Errorf("ensuring domain %s: %w", domain, err)
	}
	return nil
}

// ListDomains returns all domain names in creation order.
func (r *SQLiteRepository) ListDomains(ctx context.Context) ([]string, error) {
	const query = `SELECT name FROM domains ORDER BY created_at, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning domain: %w", err)
		}
		domains = append(domains, name)
	}
	return domains, rows.Err()
}

// SaveItems stores each item as a new revision. A uuid that already exists
// is rejected per-item with a conflict reason unless the item asks to
// overwrite, in which case the next revision is appended. The batch always
// completes; the returned slice is index-aligned with the input.
func (r *SQLiteRepository) SaveItems(ctx context.Context, items []SaveItem, author string) ([]SaveResult, error) {
	results := make([]SaveResult, 0, len(items))

	for _, item := range items {
		res := SaveResult{UUID: item.UUID}

		if err := r.EnsureDomain(ctx, item.Domain); err != nil {
			res.Reason = err.Error()
			results = append(results, res)
			continue
		}

		latest, exists, err := r.latestRevision(ctx, item.Domain, item.UUID)
		if err != nil {
			res.Reason = err.Error()
			results = append(results, res)
			continue
		}
		if exists && !item.Overwrite {
			res.Reason = fmt.Sprintf("%v: %s revision %d", ErrConflict, item.UUID, latest)
			results = append(results, res)
			continue
		}

		revision := 0
		if exists {
			revision = latest + 1
		}

		const query = `INSERT INTO documents
			(domain, uuid, revision, item_type, simple_name, xml, author)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		_, err = r.db.ExecContext(ctx, query,
			item.Domain, item.UUID, revision, item.ItemType, item.SimpleName, item.XML, author)
		if err != nil {
			res.Reason = fmt.Sprintf("inserting document: %v", err)
			results = append(results, res)
			continue
		}

		res.Success = true
		res.Revision = revision
		results = append(results, res)
	}

	return results, nil
}

// latestRevision returns the highest revision stored for (domain, uuid).
func (r *SQLiteRepository) latestRevision(ctx context.Context, domain, uuid string) (int, bool, error) {
	const query = `SELECT MAX(revision) FROM documents WHERE domain = ? AND uuid = ?`
	var latest sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, domain, uuid).Scan(&latest)
	if err != nil {
		return 0, false, fmt.Errorf("reading latest revision of %s: %w", uuid, err)
	}
	if !latest.Valid {
		return 0, false, nil
	}
	return int(latest.Int64), true, nil
}

// LoadItems returns one LoadedItem per requested ref, in request order.
// A missing document yields an item with empty XML rather than an error.
func (r *SQLiteRepository) LoadItems(ctx context.Context, domain string, refs []LoadRef) ([]LoadedItem, error) {
	items := make([]LoadedItem, 0, len(refs))
	for _, ref := range refs {
		xml, err := r.loadOne(ctx, domain, ref)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		items = append(items, LoadedItem{Domain: domain, UUID: ref.UUID, XML: xml})
	}
	return items, nil
}

// loadOne reads a single document. Revision < 0 selects the latest one.
func (r *SQLiteRepository) loadOne(ctx context.Context, domain string, ref LoadRef) (string, error) {
	var (
		xml string
		err error
	)
	if ref.Revision < 0 {
		const query = `SELECT xml FROM documents WHERE domain = ? AND uuid = ?
			ORDER BY revision DESC LIMIT 1`
		err = r.db.QueryRowContext(ctx, query, domain, ref.UUID).Scan(&xml)
	} else {
		const query = `SELECT xml FROM documents WHERE domain = ? AND uuid = ? AND revision = ?`
		err = r.db.QueryRowContext(ctx, query, domain, ref.UUID, ref.Revision).Scan(&xml)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, domain, ref.UUID)
	}
	if err != nil {
		return "", fmt.Errorf("loading %s/%s: %w", domain, ref.UUID, err)
	}
	return xml, nil
}

// LoadItemsWithChildren loads the requested roots and then every child
// referenced under listTag elements, transitively, in one reply. Children
// already in the reply are not loaded twice.
func (r *SQLiteRepository) LoadItemsWithChildren(ctx context.Context, domain string, refs []LoadRef, listTag string) ([]LoadedItem, error) {
	seen := make(map[string]bool, len(refs))
	var items []LoadedItem

	queue := make([]LoadRef, 0, len(refs))
	for _, ref := range refs {
		if !seen[ref.UUID] {
			seen[ref.UUID] = true
			queue = append(queue, ref)
		}
	}

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]

		xml, err := r.loadOne(ctx, domain, ref)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		items = append(items, LoadedItem{Domain: domain, UUID: ref.UUID, XML: xml})
		if xml == "" {
			continue
		}

		for _, child := range ScanChildRefs(xml, listTag) {
			if seen[child.UUID] {
				continue
			}
			seen[child.UUID] = true
			queue = append(queue, LoadRef{UUID: child.UUID, Revision: child.Revision})
		}
	}

	return items, nil
}

// VersionInfo returns the latest document and the full revision list for
// each requested uuid. Unknown uuids are omitted from the result.
func (r *SQLiteRepository) VersionInfo(ctx context.Context, domain string, uuids []string) (map[string]VersionInfo, error) {
	out := make(map[string]VersionInfo, len(uuids))
	for _, uuid := range uuids {
		const query = `SELECT revision, xml FROM documents
			WHERE domain = ? AND uuid = ? ORDER BY revision`
		rows, err := r.db.QueryContext(ctx, query, domain, uuid)
		if err != nil {
			return nil, fmt.Errorf("reading versions of %s: %w", uuid, err)
		}

		var info VersionInfo
		for rows.Next() {
			var (
				revision int
				xml      string
			)
			if err := rows.Scan(&revision, &xml); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning version of %s: %w", uuid, err)
			}
			info.Revisions = append(info.Revisions, revision)
			info.Document = xml
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		if len(info.Revisions) > 0 {
			out[uuid] = info
		}
	}
	return out, nil
}

// ListItems returns the latest revision of every document in a domain,
// optionally filtered to a set of item types.
func (r *SQLiteRepository) ListItems(ctx context.Context, domain string, itemTypes []string) ([]ItemInfo, error) {
	query := `SELECT d.uuid, d.item_type, d.simple_name
		FROM documents d
		JOIN (SELECT uuid, MAX(revision) AS rev FROM documents WHERE domain = ? GROUP BY uuid) latest
		  ON d.uuid = latest.uuid AND d.revision = latest.rev
		WHERE d.domain = ?`
	args := []any{domain, domain}

	if len(itemTypes) > 0 {
		query += ` AND d.item_type IN (?` + repeatPlaceholder(len(itemTypes)-1) + `)`
		for _, t := range itemTypes {
			args = append(args, t)
		}
	}
	query += ` ORDER BY d.simple_name, d.uuid`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items in %s: %w", domain, err)
	}
	defer rows.Close()

	var items []ItemInfo
	for rows.Next() {
		var item ItemInfo
		if err := rows.Scan(&item.UUID, &item.ItemType, &item.SimpleName); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// repeatPlaceholder returns n copies of ", ?" for IN clauses.
func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
