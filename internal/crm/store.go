// Package crm implements the lead store on a Notion database: schema
// validation, lead extraction, schema-aware writes, and output column
// bootstrap.
package crm

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/resilience"
	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/notion"
)

// Store reads and writes leads in one Notion database.
type Store struct {
	client notion.Client
	cfg    config.NotionConfig
	retry  resilience.RetryConfig

	mu     sync.Mutex
	schema map[string]string
}

// New creates a Store for the database named in cfg.
func New(client notion.Client, cfg config.NotionConfig, retry config.RetryConfig) *Store {
	return &Store{
		client: client,
		cfg:    cfg,
		retry:  resilience.Policy(retry.MaxAttempts, retry.InitialBackoffMs),
	}
}

// policy returns the retry policy for one Notion operation.
func (s *Store) policy(op string) resilience.RetryConfig {
	p := s.retry
	p.ShouldRetry = isRetryable
	p.OnRetry = resilience.RetryLogger("notion", op)
	return p
}

func isRetryable(err error) bool {
	switch notion.StatusCode(err) {
	case 429, 500, 502, 503:
		return true
	case 0:
		return resilience.IsTransient(err) || strings.Contains(strings.ToLower(err.Error()), "rate limit")
	default:
		return false
	}
}

// ValidateDatabase checks that the database exists and is shared with the
// integration. Missing input columns are logged as a warning, not an error.
func (s *Store) ValidateDatabase(ctx context.Context) error {
	db, err := s.getDatabase(ctx)
	if err != nil {
		switch notion.StatusCode(err) {
		case 404:
			return eris.Errorf("crm: database not found (ID: %s).\n"+
				"  - Double-check NOTION_DATABASE_ID in your .env\n"+
				"  - Make sure you shared the database with your integration:\n"+
				"    Open the database in Notion → '...' menu → 'Connections' → add your integration",
				s.cfg.DatabaseID)
		case 401:
			return eris.New("crm: Notion API key is invalid or expired.\n" +
				"  Check NOTION_API_KEY in your .env\n" +
				"  Manage integrations at: https://www.notion.so/my-integrations")
		}
		return err
	}

	schema := s.cacheSchema(db)
	var missing []string
	for _, name := range s.inputColumns() {
		if _, ok := schema[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		zap.L().Warn("crm: database is missing expected input columns; some agent features may not work",
			zap.Strings("missing", missing),
		)
	}
	return nil
}

func (s *Store) inputColumns() []string {
	p := s.cfg.Properties
	return []string{p.Company, p.Website, p.Notes, p.LastContacted, p.Status}
}

// Schema returns the database property types keyed by column name. The
// result is cached for the lifetime of the Store.
func (s *Store) Schema(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	cached := s.schema
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	db, err := s.getDatabase(ctx)
	if err != nil {
		return nil, err
	}
	return s.cacheSchema(db), nil
}

func (s *Store) getDatabase(ctx context.Context) (*notionapi.Database, error) {
	db, err := resilience.DoVal(ctx, s.policy("get_database"), func(ctx context.Context) (*notionapi.Database, error) {
		return s.client.GetDatabase(ctx, s.cfg.DatabaseID)
	})
	if err != nil {
		return nil, eris.Wrap(err, "crm: get database")
	}
	return db, nil
}

func (s *Store) cacheSchema(db *notionapi.Database) map[string]string {
	schema := make(map[string]string, len(db.Properties))
	for name, prop := range db.Properties {
		if prop == nil {
			continue
		}
		schema[name] = string(prop.GetType())
	}
	s.mu.Lock()
	s.schema = schema
	s.mu.Unlock()
	return schema
}

// FetchLeads returns every lead in the database in store order.
func (s *Store) FetchLeads(ctx context.Context) ([]lead.Lead, error) {
	pages, err := notion.QueryAll(ctx, retryingClient{s}, s.cfg.DatabaseID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "crm: fetch leads")
	}

	leads := make([]lead.Lead, 0, len(pages))
	for i := range pages {
		leads = append(leads, s.extractLead(&pages[i]))
	}
	zap.L().Debug("crm: fetched leads", zap.Int("count", len(leads)))
	return leads, nil
}

// UpdateLead writes canonical output fields to the lead's page. Keys are
// mapped to configured column names and formatted by column type; fields
// whose column is absent from the schema are skipped.
func (s *Store) UpdateLead(ctx context.Context, id string, fields map[string]any) error {
	schema, err := s.Schema(ctx)
	if err != nil {
		return err
	}

	props := s.formatProperties(id, fields, schema)
	if len(props) == 0 {
		zap.L().Debug("crm: nothing to write", zap.String("page_id", id))
		return nil
	}

	_, err = resilience.DoVal(ctx, s.policy("update_page"), func(ctx context.Context) (*notionapi.Page, error) {
		return s.client.UpdatePage(ctx, id, &notionapi.PageUpdateRequest{Properties: props})
	})
	if err != nil {
		return eris.Wrapf(err, "crm: update lead %s", id)
	}
	return nil
}

// BootstrapOutputProperties creates the output columns missing from the
// database and returns their names in canonical order.
func (s *Store) BootstrapOutputProperties(ctx context.Context) ([]string, error) {
	schema, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}

	configs := make(notionapi.PropertyConfigs)
	var created []string
	for _, field := range lead.OutputFields {
		column := s.cfg.OutputColumn(field)
		if _, ok := schema[column]; ok {
			continue
		}
		configs[column] = outputPropertyConfig(field)
		created = append(created, column)
	}
	if len(created) == 0 {
		return nil, nil
	}

	db, err := resilience.DoVal(ctx, s.policy("update_database"), func(ctx context.Context) (*notionapi.Database, error) {
		return s.client.UpdateDatabase(ctx, s.cfg.DatabaseID, &notionapi.DatabaseUpdateRequest{Properties: configs})
	})
	if err != nil {
		return nil, eris.Wrap(err, "crm: create output columns")
	}
	if db != nil && len(db.Properties) > 0 {
		s.cacheSchema(db)
	} else {
		s.mu.Lock()
		s.schema = nil
		s.mu.Unlock()
	}

	zap.L().Info("crm: created output columns", zap.Strings("columns", created))
	return created, nil
}

// retryingClient applies the store's retry policy to paginated queries.
type retryingClient struct {
	s *Store
}

func (r retryingClient) GetDatabase(ctx context.Context, dbID string) (*notionapi.Database, error) {
	return r.s.client.GetDatabase(ctx, dbID)
}

func (r retryingClient) UpdateDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseUpdateRequest) (*notionapi.Database, error) {
	return r.s.client.UpdateDatabase(ctx, dbID, req)
}

func (r retryingClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return resilience.DoVal(ctx, r.s.policy("query_database"), func(ctx context.Context) (*notionapi.DatabaseQueryResponse, error) {
		return r.s.client.QueryDatabase(ctx, dbID, req)
	})
}

func (r retryingClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return r.s.client.UpdatePage(ctx, pageID, req)
}
