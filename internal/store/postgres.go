package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "fleetroute/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// Ping reports database connectivity; used by readiness checks.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate creates the schema if missing (dev helper).
func (p *Postgres) Migrate(ctx context.Context) error {
    ddl := []string{
        `CREATE TABLE IF NOT EXISTS runs (
            id UUID PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            status TEXT NOT NULL,
            sites INT NOT NULL,
            vehicles INT NOT NULL,
            seed BIGINT NOT NULL,
            error TEXT,
            solution JSONB,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            finished_at TIMESTAMPTZ
        )`,
        `CREATE INDEX IF NOT EXISTS runs_tenant_created_idx ON runs (tenant_id, created_at)`,
        `CREATE TABLE IF NOT EXISTS subscriptions (
            id UUID PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            url TEXT NOT NULL,
            events TEXT[] NOT NULL,
            secret TEXT NOT NULL DEFAULT ''
        )`,
        `CREATE TABLE IF NOT EXISTS webhook_deliveries (
            id UUID PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            subscription_id UUID NOT NULL,
            event_type TEXT NOT NULL,
            url TEXT NOT NULL,
            secret TEXT NOT NULL DEFAULT '',
            payload BYTEA NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            attempts INT NOT NULL DEFAULT 0,
            next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            last_error TEXT,
            response_code INT,
            latency_ms INT,
            delivered_at TIMESTAMPTZ
        )`,
        `CREATE INDEX IF NOT EXISTS webhook_due_idx ON webhook_deliveries (status, next_attempt_at)`,
    }
    for _, q := range ddl {
        if _, err := p.db.ExecContext(ctx, q); err != nil {
            return err
        }
    }
    return nil
}

func (p *Postgres) CreateRun(ctx context.Context, tenantID string, req model.SolveRequest) (model.Run, error) {
    id := uuid.New().String()
    now := time.Now().UTC()
    _, err := p.db.ExecContext(ctx,
        `INSERT INTO runs (id, tenant_id, status, sites, vehicles, seed, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
        id, tenantID, model.RunPending, len(req.Sites), len(req.Vehicles), req.Config.Seed, now)
    if err != nil {
        return model.Run{}, err
    }
    return model.Run{
        ID: id, TenantID: tenantID, Status: model.RunPending,
        Sites: len(req.Sites), Vehicles: len(req.Vehicles), Seed: req.Config.Seed,
        CreatedAt: now.Format(time.RFC3339),
    }, nil
}

func (p *Postgres) scanRun(row *sql.Row) (model.Run, error) {
    var r model.Run
    var errMsg sql.NullString
    var sol []byte
    var created time.Time
    var finished sql.NullTime
    err := row.Scan(&r.ID, &r.TenantID, &r.Status, &r.Sites, &r.Vehicles, &r.Seed, &errMsg, &sol, &created, &finished)
    if errors.Is(err, sql.ErrNoRows) {
        return model.Run{}, ErrNotFound
    }
    if err != nil {
        return model.Run{}, err
    }
    r.Error = errMsg.String
    r.CreatedAt = created.UTC().Format(time.RFC3339)
    if finished.Valid {
        r.FinishedAt = finished.Time.UTC().Format(time.RFC3339)
    }
    if len(sol) > 0 {
        var s model.SolutionOut
        if err := json.Unmarshal(sol, &s); err == nil {
            r.Solution = &s
        }
    }
    return r, nil
}

const runCols = `id::text, tenant_id, status, sites, vehicles, seed, error, solution, created_at, finished_at`

func (p *Postgres) GetRun(ctx context.Context, tenantID, runID string) (model.Run, error) {
    row := p.db.QueryRowContext(ctx, `SELECT `+runCols+` FROM runs WHERE tenant_id=$1 AND id=$2`, tenantID, runID)
    return p.scanRun(row)
}

func (p *Postgres) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error) {
    if limit <= 0 { limit = 100 }
    q := `SELECT ` + runCols + ` FROM runs WHERE tenant_id=$1`
    args := []any{tenantID}
    if cursor != "" {
        q += ` AND created_at > (SELECT created_at FROM runs WHERE id=$2)`
        args = append(args, cursor)
    }
    q += ` ORDER BY created_at ASC LIMIT ` + strconv.Itoa(limit+1)
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, "", err
    }
    defer rows.Close()
    out := []model.Run{}
    for rows.Next() {
        var r model.Run
        var errMsg sql.NullString
        var sol []byte
        var created time.Time
        var finished sql.NullTime
        if err := rows.Scan(&r.ID, &r.TenantID, &r.Status, &r.Sites, &r.Vehicles, &r.Seed, &errMsg, &sol, &created, &finished); err != nil {
            return nil, "", err
        }
        r.Error = errMsg.String
        r.CreatedAt = created.UTC().Format(time.RFC3339)
        if finished.Valid { r.FinishedAt = finished.Time.UTC().Format(time.RFC3339) }
        if len(sol) > 0 {
            var s model.SolutionOut
            if json.Unmarshal(sol, &s) == nil { r.Solution = &s }
        }
        out = append(out, r)
    }
    next := ""
    if len(out) > limit {
        out = out[:limit]
        next = out[limit-1].ID
    }
    return out, next, rows.Err()
}

func (p *Postgres) StartRun(ctx context.Context, tenantID, runID string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$1 WHERE tenant_id=$2 AND id=$3`, model.RunRunning, tenantID, runID)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) CompleteRun(ctx context.Context, tenantID, runID string, sol model.SolutionOut) (model.Run, error) {
    body, err := json.Marshal(sol)
    if err != nil { return model.Run{}, err }
    res, err := p.db.ExecContext(ctx,
        `UPDATE runs SET status=$1, solution=$2, finished_at=now() WHERE tenant_id=$3 AND id=$4`,
        model.RunCompleted, body, tenantID, runID)
    if err != nil { return model.Run{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.Run{}, ErrNotFound }
    return p.GetRun(ctx, tenantID, runID)
}

func (p *Postgres) FailRun(ctx context.Context, tenantID, runID, msg string) (model.Run, error) {
    res, err := p.db.ExecContext(ctx,
        `UPDATE runs SET status=$1, error=$2, finished_at=now() WHERE tenant_id=$3 AND id=$4`,
        model.RunFailed, msg, tenantID, runID)
    if err != nil { return model.Run{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.Run{}, ErrNotFound }
    return p.GetRun(ctx, tenantID, runID)
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx,
        `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
        id, req.TenantID, req.URL, toPgTextArray(req.Events), req.Secret)
    if err != nil {
        return model.Subscription{}, err
    }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx,
        `SELECT id::text, tenant_id, url, events, secret FROM subscriptions WHERE tenant_id=$1 AND $2 = ANY(events)`,
        tenantID, eventType)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return scanSubs(rows)
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 { limit = 100 }
    rows, err := p.db.QueryContext(ctx,
        `SELECT id::text, tenant_id, url, events, secret FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT `+strconv.Itoa(limit+1),
        tenantID, cursor)
    if err != nil {
        return nil, "", err
    }
    defer rows.Close()
    subs, err := scanSubs(rows)
    if err != nil {
        return nil, "", err
    }
    next := ""
    if len(subs) > limit {
        subs = subs[:limit]
        next = subs[limit-1].ID
    }
    return subs, next, nil
}

func scanSubs(rows *sql.Rows) ([]model.Subscription, error) {
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var events []byte
        if err := rows.Scan(&s.ID, &s.TenantID, &s.URL, &events, &s.Secret); err != nil {
            return nil, err
        }
        s.Events = parsePgTextArray(string(events))
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx,
        `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
        id, tenantID, subscriptionID, eventType, url, secret, payload)
    return id, err
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx,
        `SELECT id::text, tenant_id, subscription_id::text, event_type, url, secret, payload, status, attempts
         FROM webhook_deliveries WHERE status='pending' AND next_attempt_at <= now()
         ORDER BY next_attempt_at LIMIT `+strconv.Itoa(limit))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if success {
        _, err := p.db.ExecContext(ctx,
            `UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, last_error=$1, response_code=$2, latency_ms=$3, delivered_at=now() WHERE id=$4`,
            lastError, responseCode, latencyMs, id)
        return err
    }
    var next time.Time
    if nextAttemptAt != nil { next = *nextAttemptAt } else { next = time.Now().Add(time.Minute) }
    _, err := p.db.ExecContext(ctx,
        `UPDATE webhook_deliveries SET attempts=attempts+1, next_attempt_at=$1, last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$5`,
        next, lastError, responseCode, latencyMs, id)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx,
        `UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$1, response_code=$2, latency_ms=$3 WHERE id=$4`,
        lastError, responseCode, latencyMs, id)
    return err
}

// toPgTextArray encodes a {a,b,c} literal; event names are plain tokens and
// never need quoting.
func toPgTextArray(items []string) string {
    return "{" + strings.Join(items, ",") + "}"
}

// parsePgTextArray decodes a simple {a,b,c} text array; values our API
// accepts never need quoting.
func parsePgTextArray(s string) []string {
    if len(s) < 2 || s == "{}" {
        return []string{}
    }
    body := s[1 : len(s)-1]
    if body == "" {
        return []string{}
    }
    var out []string
    start := 0
    for i := 0; i <= len(body); i++ {
        if i == len(body) || body[i] == ',' {
            out = append(out, body[start:i])
            start = i + 1
        }
    }
    return out
}
