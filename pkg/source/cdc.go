package source

import (
	"context"
	"time"

	"github.com/go-mysql-org/go-mysql/canal"
	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/go-mysql-org/go-mysql/schema"
	mysqldriver "github.com/go-sql-driver/mysql"

	"flowline/pkg/config"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/model"
)

// cdcEvent is one captured binlog row change, already split into its
// current and (for update/delete) previous column values.
type cdcEvent struct {
	kind      string
	database  string
	table     string
	timestamp time.Time
	data      map[string]any
	oldData   map[string]any
}

// CDCSource streams MySQL binlog row events through go-mysql-org/go-mysql's
// canal, buffering them until Fetch drains a bounded batch. An unbounded
// streaming Open/Read(chan)/Close shape is collapsed into fetch(ctx)'s
// one-shot contract the same way KafkaSource collapses its reader loop,
// by draining up to MaxEvents (or until MaxWaitMs elapses) per call.
type CDCSource struct {
	output   string
	canal    *canal.Canal
	maxEvts  int
	maxWait  time.Duration
	model    *model.Model
	eventCh  chan cdcEvent
	runErrCh chan error
}

// NewCDCSource builds a CDCSource from a resolved CDCSourceConfig and
// starts capturing from the connection's current binlog position.
func NewCDCSource(cfg config.CDCSourceConfig, conn *config.ConnectionConfig, m *model.Model) (*CDCSource, error) {
	output, ok := cfg.Output.Value()
	if !ok {
		return nil, errs.Config("source.cdc", "output symbol unresolved")
	}
	if conn == nil || conn.DSN == "" {
		return nil, errs.Config("source.cdc", "%q: connection dsn required", output)
	}
	dsn, err := mysqldriver.ParseDSN(conn.DSN)
	if err != nil {
		return nil, errs.ConfigWrap("source.cdc", err, "%q: invalid mysql dsn", output)
	}

	serverID := cfg.ServerID
	if serverID == 0 {
		serverID = 101
	}
	maxEvts := cfg.MaxEvents
	if maxEvts <= 0 {
		maxEvts = 1000
	}
	maxWait := 500 * time.Millisecond
	if cfg.MaxWaitMs > 0 {
		maxWait = time.Duration(cfg.MaxWaitMs) * time.Millisecond
	}

	ccfg := canal.NewDefaultConfig()
	ccfg.Addr = dsn.Addr
	ccfg.User = dsn.User
	ccfg.Password = dsn.Passwd
	ccfg.ServerID = serverID
	ccfg.Flavor = "mysql"
	if len(cfg.Tables) > 0 {
		ccfg.IncludeTableRegex = cfg.Tables
	}

	c, err := canal.NewCanal(ccfg)
	if err != nil {
		return nil, errs.ConnectionWrap("source.cdc", err, "%q: canal setup", output)
	}

	s := &CDCSource{
		output:   output,
		canal:    c,
		maxEvts:  maxEvts,
		maxWait:  maxWait,
		model:    m,
		eventCh:  make(chan cdcEvent, maxEvts),
		runErrCh: make(chan error, 1),
	}
	c.SetEventHandler(&cdcEventHandler{source: s})

	pos, err := c.GetMasterPos()
	if err != nil {
		return nil, errs.ConnectionWrap("source.cdc", err, "%q: master position", output)
	}
	go func() {
		if err := c.RunFrom(pos); err != nil {
			select {
			case s.runErrCh <- err:
			default:
			}
		}
	}()

	return s, nil
}

func (s *CDCSource) Output() string { return s.output }

// Fetch collects row changes until MaxEvents have been gathered or
// MaxWaitMs has elapsed since the call began, whichever comes first.
func (s *CDCSource) Fetch(ctx context.Context) (frame.Frame, error) {
	timer := time.NewTimer(s.maxWait)
	defer timer.Stop()

	var rows []map[string]any
	for len(rows) < s.maxEvts {
		select {
		case ev := <-s.eventCh:
			rows = append(rows, cdcEventToRow(ev))
		case err := <-s.runErrCh:
			return frame.Frame{}, errs.ConnectionWrap("source.cdc", err, "%q: binlog stream", s.output)
		case <-timer.C:
			return buildFrame(rows, s.model)
		case <-ctx.Done():
			return frame.Frame{}, ctx.Err()
		}
	}
	return buildFrame(rows, s.model)
}

func (s *CDCSource) Close() error {
	s.canal.Close()
	return nil
}

func cdcEventToRow(ev cdcEvent) map[string]any {
	row := map[string]any{
		"_cdc_type":  ev.kind,
		"_database":  ev.database,
		"_table":     ev.table,
		"_timestamp": ev.timestamp,
	}
	for k, v := range ev.data {
		row[k] = v
	}
	if ev.oldData != nil {
		old := make(map[string]any, len(ev.oldData))
		for k, v := range ev.oldData {
			old[k] = v
		}
		row["_old_data"] = old
	}
	return row
}

// cdcEventHandler relays canal row events into the owning CDCSource's
// buffered channel, dropping events once it's full rather than blocking
// the binlog stream.
type cdcEventHandler struct {
	canal.DummyEventHandler
	source *CDCSource
}

func (h *cdcEventHandler) OnRow(e *canal.RowsEvent) error {
	var kind string
	switch e.Action {
	case canal.InsertAction:
		kind = "insert"
	case canal.UpdateAction:
		kind = "update"
	case canal.DeleteAction:
		kind = "delete"
	default:
		return nil
	}

	cols := e.Table.Columns
	now := time.Now()

	if e.Action == canal.UpdateAction {
		for i := 0; i+1 < len(e.Rows); i += 2 {
			h.emit(cdcEvent{
				kind: kind, database: e.Table.Schema, table: e.Table.Name, timestamp: now,
				data: rowToMap(cols, e.Rows[i+1]), oldData: rowToMap(cols, e.Rows[i]),
			})
		}
		return nil
	}
	for _, row := range e.Rows {
		ev := cdcEvent{kind: kind, database: e.Table.Schema, table: e.Table.Name, timestamp: now}
		if kind == "delete" {
			ev.oldData = rowToMap(cols, row)
		} else {
			ev.data = rowToMap(cols, row)
		}
		h.emit(ev)
	}
	return nil
}

func (h *cdcEventHandler) OnPosSynced(header *replication.EventHeader, pos mysql.Position, set mysql.GTIDSet, force bool) error {
	return nil
}

func (h *cdcEventHandler) String() string { return "flowline.cdc" }

func (h *cdcEventHandler) emit(ev cdcEvent) {
	select {
	case h.source.eventCh <- ev:
	default:
	}
}

func rowToMap(columns []schema.TableColumn, row []any) map[string]any {
	data := make(map[string]any, len(columns))
	for i, col := range columns {
		if i >= len(row) {
			continue
		}
		v := row[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		data[col.Name] = v
	}
	return data
}
