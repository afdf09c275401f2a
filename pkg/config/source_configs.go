package config

import "flowline/pkg/keyword"

// AuthConfig configures HTTP authentication for Source/Request Group HTTP
// adapters: basic, bearer, or oauth2 client-credentials.
type AuthConfig struct {
	Type         string   `yaml:"type"` // basic, bearer, oauth2
	Username     string   `yaml:"username,omitempty"`
	Password     string   `yaml:"password,omitempty"`
	Token        string   `yaml:"token,omitempty"`
	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	TokenURL     string   `yaml:"token_url,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// RetryConfig overrides the default bounded exponential backoff (initial
// 1000ms doubling, 8 attempts) HTTP adapters otherwise use.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts,omitempty"`
	InitialBackoffMs int `yaml:"initial_backoff_ms,omitempty"`
}

// PaginationConfig configures incremental HTTP pagination for http_batch
// sources/requests, supplemented from original_source's paging support
// (see SPEC_FULL.md).
type PaginationConfig struct {
	Type        string `yaml:"type"` // next_url, offset, cursor
	NextField   string `yaml:"next_field,omitempty"`
	DataField   string `yaml:"data_field,omitempty"`
	OffsetParam string `yaml:"offset_param,omitempty"`
	CursorParam string `yaml:"cursor_param,omitempty"`
	CursorField string `yaml:"cursor_field,omitempty"`
	PageSize    int    `yaml:"page_size,omitempty"`
	MaxPages    int    `yaml:"max_pages,omitempty"`
}

// CSVSourceConfig is the `csv` one-of entry under a Source Group.
type CSVSourceConfig struct {
	Output    keyword.Keyword[string] `yaml:"output"`
	Path      string                  `yaml:"path,omitempty"`
	Paths     []string                `yaml:"paths,omitempty"`
	Separator string                  `yaml:"separator,omitempty"`
	Model     string                  `yaml:"model,omitempty"`
}

// JSONSourceConfig is the `json` one-of entry under a Source Group.
type JSONSourceConfig struct {
	Output keyword.Keyword[string] `yaml:"output"`
	Path   string                  `yaml:"path,omitempty"`
	Paths  []string                `yaml:"paths,omitempty"`
	Model  string                  `yaml:"model,omitempty"`
}

// SQLSourceConfig is the `sql` one-of entry under a Source Group. Query
// is literal SQL when set; otherwise Table plus a referenced Model
// derive a "SELECT {projection} FROM {table}" query.
type SQLSourceConfig struct {
	Output     keyword.Keyword[string] `yaml:"output"`
	Connection string                  `yaml:"connection"`
	Query      string                  `yaml:"query,omitempty"`
	Table      string                  `yaml:"table,omitempty"`
	Model      string                  `yaml:"model,omitempty"`
}

// ValueRef names a frame+column pair an http_single source/request reads
// values from to interpolate into its URL template's `{}` placeholders.
type ValueRef struct {
	Frame  string `yaml:"frame"`
	Column string `yaml:"column"`
}

// HTTPBatchConfig is the `http_batch` one-of entry shared by Source and
// Request Groups: many URLs are read off an input frame column,
// deduplicated, and fetched concurrently.
type HTTPBatchConfig struct {
	Output      keyword.Keyword[string] `yaml:"output"`
	Input       keyword.Keyword[string] `yaml:"input"`
	URLColumn   string                  `yaml:"url_column"`
	Method      string                  `yaml:"method,omitempty"`
	Headers     map[string]string       `yaml:"headers,omitempty"`
	Body        string                  `yaml:"body,omitempty"`
	Auth        *AuthConfig             `yaml:"auth,omitempty"`
	Pagination  *PaginationConfig       `yaml:"pagination,omitempty"`
	ContentType string                  `yaml:"content_type,omitempty"`
	Model       string                  `yaml:"model,omitempty"`
	Retry       *RetryConfig            `yaml:"retry,omitempty"`
}

// HTTPSingleConfig is the `http_single` one-of entry shared by Source and
// Request Groups: one URL template whose `{}` placeholders are
// interpolated from Values, comma- (or Separator-) joined in declared
// order.
type HTTPSingleConfig struct {
	Output      keyword.Keyword[string] `yaml:"output"`
	URL         string                  `yaml:"url"`
	Method      string                  `yaml:"method,omitempty"`
	Headers     map[string]string       `yaml:"headers,omitempty"`
	Body        string                  `yaml:"body,omitempty"`
	Auth        *AuthConfig             `yaml:"auth,omitempty"`
	ContentType string                  `yaml:"content_type,omitempty"`
	Model       string                  `yaml:"model,omitempty"`
	Retry       *RetryConfig            `yaml:"retry,omitempty"`
	Values      []ValueRef              `yaml:"values,omitempty"`
	Separator   string                  `yaml:"separator,omitempty"`
}

// MongoSourceConfig is the `mongo` one-of entry under a Source Group.
type MongoSourceConfig struct {
	Output     keyword.Keyword[string] `yaml:"output"`
	Connection string                  `yaml:"connection"`
	Database   string                  `yaml:"database"`
	Collection string                  `yaml:"collection"`
	Filter     map[string]any          `yaml:"filter,omitempty"`
	Model      string                  `yaml:"model,omitempty"`
}

// ElasticsearchSourceConfig is the `elasticsearch` one-of entry under a
// Source Group.
type ElasticsearchSourceConfig struct {
	Output     keyword.Keyword[string] `yaml:"output"`
	Connection string                  `yaml:"connection"`
	Index      string                  `yaml:"index"`
	Query      map[string]any          `yaml:"query,omitempty"`
	Size       int                     `yaml:"size,omitempty"`
	Model      string                  `yaml:"model,omitempty"`
}

// CDCSourceConfig is the `cdc` one-of entry under a Source Group: a
// MySQL binlog change-data-capture adapter built on go-mysql-org/go-mysql's
// canal, supplementing the declarative sources with a streaming-capture
// one (see SPEC_FULL.md's domain stack).
type CDCSourceConfig struct {
	Output     keyword.Keyword[string] `yaml:"output"`
	Connection string                  `yaml:"connection"`
	Tables     []string                `yaml:"tables,omitempty"`
	ServerID   uint32                  `yaml:"server_id,omitempty"`
	MaxEvents  int                     `yaml:"max_events,omitempty"`
	MaxWaitMs  int                     `yaml:"max_wait_ms,omitempty"`
	Model      string                  `yaml:"model,omitempty"`
}

// KafkaSourceConfig is the `kafka` one-of entry under a Source Group. The
// fetch(ctx) contract has no place for an unbounded consumer loop, so
// this drains up to MaxMessages or until MaxWaitMs elapses and returns
// what it collected as one frame.
type KafkaSourceConfig struct {
	Output      keyword.Keyword[string] `yaml:"output"`
	Connection  string                  `yaml:"connection"`
	Topics      []string                `yaml:"topics"`
	GroupID     string                  `yaml:"group_id,omitempty"`
	StartOffset string                  `yaml:"start_offset,omitempty"`
	MaxMessages int                     `yaml:"max_messages,omitempty"`
	MaxWaitMs   int                     `yaml:"max_wait_ms,omitempty"`
	Model       string                  `yaml:"model,omitempty"`
}
