package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hemo-board/internal/logger"
	"hemo-board/internal/model"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

type SQLiteOptions struct {
	// PollInterval enables the cross-process watch loop when > 0.
	PollInterval time.Duration
	Logger       logger.Logger
}

// SQLite is a Backend over a local SQLite file. Several processes may open
// the same file; each one notices the others' commits through the watch loop.
type SQLite struct {
	path   string
	db     *sql.DB
	log    logger.Logger
	origin string
	bus    changeBus

	watchConn *sql.Conn
	stopOnce  sync.Once
	stopCh    chan struct{}
	watchDone chan struct{}
}

// OpenSQLite migrates and opens the database at path, creating parent
// directories as needed.
func OpenSQLite(ctx context.Context, path string, opts SQLiteOptions) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := Migrate(path); err != nil {
		return nil, err
	}

	// modernc.org/sqlite driver name is "sqlite". Pragmas go in the DSN so
	// every pooled connection gets them.
	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, opErr("open", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop{}
	}
	s := &SQLite{
		path:   path,
		db:     db,
		log:    log,
		origin: ulid.Make().String(),
		stopCh: make(chan struct{}),
	}
	if opts.PollInterval > 0 {
		conn, err := db.Conn(ctx)
		if err != nil {
			_ = db.Close()
			return nil, opErr("open", err)
		}
		s.watchConn = conn
		s.watchDone = make(chan struct{})
		go s.watchLoop(opts.PollInterval)
	}
	return s, nil
}

func (s *SQLite) Origin() string { return s.origin }
func (s *SQLite) Path() string   { return s.path }

func (s *SQLite) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.watchDone != nil {
		<-s.watchDone
		_ = s.watchConn.Close()
	}
	s.bus.close()
	return s.db.Close()
}

// watchLoop publishes an external change whenever another connection commits.
// PRAGMA data_version only moves for commits made through other connections,
// which includes this process's own pooled writers; those produce one extra
// notification that reload-everything consumers absorb.
func (s *SQLite) watchLoop(every time.Duration) {
	defer close(s.watchDone)
	t := time.NewTicker(every)
	defer t.Stop()

	last := int64(-1)
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
		}
		var v int64
		if err := s.watchConn.QueryRowContext(context.Background(), "PRAGMA data_version").Scan(&v); err != nil {
			s.log.Warnf("data_version poll failed: %v", err)
			continue
		}
		if last >= 0 && v != last {
			s.log.Debugf("data_version %d -> %d", last, v)
			s.bus.publish(newChange(model.ChangeExternal, "", s.origin))
		}
		last = v
	}
}

const cardColumns = `id, name, room, dx, proc, day, row_label, ord, done, created_at_unixms, created_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(r rowScanner) (model.Card, error) {
	var (
		c         model.Card
		row, proc string
		done      int
		createdMs int64
		createdBy sql.NullString
	)
	if err := r.Scan(&c.ID, &c.Name, &c.Room, &c.Dx, &proc, &c.Day, &row, &c.Ord, &done, &createdMs, &createdBy); err != nil {
		return model.Card{}, err
	}
	c.Row = model.Row(row)
	c.Proc = model.Procedure(proc)
	c.Done = done != 0
	c.CreatedAt = time.UnixMilli(createdMs).UTC()
	if createdBy.Valid {
		v := createdBy.String
		c.CreatedBy = &v
	}
	return c, nil
}

func (s *SQLite) FetchWeek(ctx context.Context, start time.Time) ([]model.Card, error) {
	first, last := WindowBounds(start)
	rows, err := s.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards
		WHERE day >= ? AND day <= ?
		ORDER BY day, row_idx, ord, created_at_unixms, id`, first, last)
	if err != nil {
		return nil, opErr("fetch week", err)
	}
	defer rows.Close()

	out := []model.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, opErr("fetch week", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, opErr("fetch week", err)
	}
	return out, nil
}

func (s *SQLite) MaxOrd(ctx context.Context, day string, row model.Row) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ord), 0) FROM cards WHERE day = ? AND row_label = ?`, day, string(row)).Scan(&v)
	return v, opErr("max ord", err)
}

func (s *SQLite) MinOrd(ctx context.Context, day string, row model.Row) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MIN(ord), 1) FROM cards WHERE day = ? AND row_label = ?`, day, string(row)).Scan(&v)
	return v, opErr("min ord", err)
}

func (s *SQLite) Insert(ctx context.Context, c model.Card) (model.Card, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	var createdBy any
	if c.CreatedBy != nil {
		createdBy = *c.CreatedBy
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO cards(`+cardColumns+`, row_idx) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Room, c.Dx, string(c.Proc), c.Day, string(c.Row), c.Ord, boolToInt(c.Done),
		c.CreatedAt.UnixMilli(), createdBy, model.RowIndex(c.Row))
	if err != nil {
		return model.Card{}, opErr("insert", err)
	}
	s.bus.publish(newChange(model.ChangeInsert, c.ID, s.origin))
	return c, nil
}

func (s *SQLite) Update(ctx context.Context, id string, patch model.CardPatch) (model.Card, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Room != nil {
		add("room", *patch.Room)
	}
	if patch.Dx != nil {
		add("dx", *patch.Dx)
	}
	if patch.Proc != nil {
		add("proc", string(*patch.Proc))
	}
	if patch.Day != nil {
		add("day", *patch.Day)
	}
	if patch.Row != nil {
		add("row_label", string(*patch.Row))
		add("row_idx", model.RowIndex(*patch.Row))
	}
	if patch.Ord != nil {
		add("ord", *patch.Ord)
	}
	if patch.Done != nil {
		add("done", boolToInt(*patch.Done))
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, `UPDATE cards SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return model.Card{}, opErr("update", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return model.Card{}, ErrNotFound
		}
	}

	c, err := s.card(ctx, id)
	if err != nil {
		return model.Card{}, err
	}
	if len(sets) > 0 {
		s.bus.publish(newChange(model.ChangeUpdate, id, s.origin))
	}
	return c, nil
}

func (s *SQLite) card(ctx context.Context, id string) (model.Card, error) {
	c, err := scanCard(s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Card{}, ErrNotFound
	}
	return c, opErr("get", err)
}

// Card returns one card by id.
func (s *SQLite) Card(ctx context.Context, id string) (model.Card, error) {
	return s.card(ctx, id)
}

func (s *SQLite) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return opErr("remove", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	s.bus.publish(newChange(model.ChangeDelete, id, s.origin))
	return nil
}

func (s *SQLite) Subscribe(fn func(model.Change)) func() {
	return s.bus.subscribeFunc(fn)
}

func (s *SQLite) Publish(c model.Change) { s.bus.publish(c) }

func (s *SQLite) Profile(ctx context.Context, userID string) (model.Profile, bool, error) {
	return s.profileWhere(ctx, "user_id = ?", userID)
}

func (s *SQLite) ProfileByEmail(ctx context.Context, email string) (model.Profile, bool, error) {
	return s.profileWhere(ctx, "email = ?", normalizeEmail(email))
}

func (s *SQLite) profileWhere(ctx context.Context, where string, arg any) (model.Profile, bool, error) {
	var p model.Profile
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT user_id, email, role FROM profiles WHERE `+where+` LIMIT 1`, arg).Scan(&p.UserID, &p.Email, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, false, nil
	}
	if err != nil {
		return model.Profile{}, false, opErr("profile", err)
	}
	p.Role = model.Role(role)
	return p, true, nil
}

func (s *SQLite) UpsertProfile(ctx context.Context, p model.Profile) error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("profile: missing user id")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO profiles(user_id, email, role) VALUES(?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET email = excluded.email, role = excluded.role`,
		p.UserID, normalizeEmail(p.Email), string(p.Role))
	return opErr("upsert profile", err)
}

func (s *SQLite) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, email, role FROM profiles`)
	if err != nil {
		return nil, opErr("list profiles", err)
	}
	defer rows.Close()
	out := []model.Profile{}
	for rows.Next() {
		var p model.Profile
		var role string
		if err := rows.Scan(&p.UserID, &p.Email, &role); err != nil {
			return nil, opErr("list profiles", err)
		}
		p.Role = model.Role(role)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, opErr("list profiles", err)
	}
	sortProfiles(out)
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
