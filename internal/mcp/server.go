package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kokistudios/kyber/internal/entry"
	"github.com/kokistudios/kyber/internal/journal"
	"github.com/kokistudios/kyber/internal/signal"
	"github.com/kokistudios/kyber/internal/tracker"
	"github.com/kokistudios/kyber/internal/trend"
)

// Server wraps the MCP server with a kyber tracker.
type Server struct {
	tracker *tracker.Tracker
	server  *mcp.Server
}

// NewServer creates a new kyber MCP server.
func NewServer(t *tracker.Tracker, version string) *Server {
	s := &Server{tracker: t}

	impl := &mcp.Implementation{
		Name:    "kyber",
		Version: version,
	}

	s.server = mcp.NewServer(impl, nil)
	s.registerTools()

	return s
}

// Run starts the MCP server on stdio.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "kyber_status",
		Description: "Current state of the weight log: the active phase, the last entry, the clean weight series " +
			"of the phase sorted by date, and the trend verdict (insufficient, progressing or stalled). " +
			"START HERE before recording or discussing progress.",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "kyber_record",
		Description: "Record one day: body weight in kg and the calorie target, plus any surplus eaten above target " +
			"(deviation_amount, one of the configured menu amounts). Omitted date means today; omitted calorie_target " +
			"repeats the previous one. A new calorie target starts a new phase. Returns the saved entry and the updated verdict.",
	}, s.handleRecord)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "kyber_undo",
		Description: "Delete the most recently recorded entry. " +
			"BEFORE CALLING: You MUST (1) show the user which entry will be removed (use kyber_history with limit 1), " +
			"(2) ask for explicit permission, (3) only then call with user_confirmed=true.",
	}, s.handleUndo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kyber_history",
		Description: "List logged entries in the order they were recorded. Use limit to get only the most recent ones.",
	}, s.handleHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kyber_phases",
		Description: "Summarize every calorie phase: id, calorie target, date range, entry count and clean (non-smoothed) count.",
	}, s.handlePhases)
}

// StatusArgs defines input for kyber_status.
type StatusArgs struct{}

// StatusResult is the output of kyber_status.
type StatusResult struct {
	HasData    bool           `json:"has_data"`
	Phase      int            `json:"phase,omitempty"`
	Last       *EntryView     `json:"last,omitempty"`
	Chart      []signal.Point `json:"chart"`
	Verdict    string         `json:"verdict"`
	Alert      string         `json:"alert,omitempty"`
	Slope      float64        `json:"slope,omitempty"`
	Samples    int            `json:"samples"`
	MinSamples int            `json:"min_samples"`
}

// EntryView is an entry as shown to clients.
type EntryView struct {
	Date            string  `json:"date"`
	Weight          float64 `json:"weight"`
	CalorieTarget   int     `json:"calorie_target"`
	DeviationAmount int     `json:"deviation_amount"`
	Smoothed        bool    `json:"smoothed"`
	PhaseID         int     `json:"phase_id"`
}

func toEntryView(e entry.Entry) EntryView {
	return EntryView{
		Date:            entry.FormatDate(e.Date),
		Weight:          e.Weight,
		CalorieTarget:   e.CalorieTarget,
		DeviationAmount: e.DeviationAmount,
		Smoothed:        e.Smoothed,
		PhaseID:         e.PhaseID,
	}
}

func toStatusResult(v journal.View) StatusResult {
	out := StatusResult{
		HasData:    v.HasData,
		Phase:      v.Phase,
		Chart:      v.Chart,
		Verdict:    v.Verdict.Kind.String(),
		Alert:      v.Verdict.Alert(),
		Samples:    v.Verdict.Samples,
		MinSamples: v.Params.MinSamples,
	}
	if out.Chart == nil {
		out.Chart = []signal.Point{}
	}
	if v.Verdict.Kind != trend.Insufficient {
		out.Slope = v.Verdict.Slope
	}
	if v.Last != nil {
		last := toEntryView(*v.Last)
		out.Last = &last
	}
	return out
}

// status returns the current view. Only store failures are errors; a trend
// that cannot be fitted is reported as insufficient.
func (s *Server) status(ctx context.Context) (StatusResult, error) {
	v, err := s.tracker.Status(ctx)
	var se *tracker.StoreError
	if errors.As(err, &se) {
		return StatusResult{}, err
	}
	return toStatusResult(v), nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, args StatusArgs) (*mcp.CallToolResult, any, error) {
	out, err := s.status(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute status: %w", err)
	}
	return nil, out, nil
}

// RecordArgs defines input for kyber_record.
type RecordArgs struct {
	Date            string  `json:"date,omitempty" jsonschema:"Day of the weigh-in as dd/mm/yyyy or yyyy-mm-dd (optional - defaults to today)"`
	Weight          float64 `json:"weight" jsonschema:"Body weight in kg, between 30 and 200"`
	CalorieTarget   int     `json:"calorie_target,omitempty" jsonschema:"Daily calorie target in kcal (optional - defaults to the previous entry's target)"`
	DeviationAmount int     `json:"deviation_amount,omitempty" jsonschema:"Calories eaten above target on this day; must be one of the configured menu amounts (default 0)"`
}

// RecordResult is the output of kyber_record.
type RecordResult struct {
	Entry   EntryView    `json:"entry"`
	Status  StatusResult `json:"status"`
	Message string       `json:"message"`
}

func (s *Server) handleRecord(ctx context.Context, req *mcp.CallToolRequest, args RecordArgs) (*mcp.CallToolResult, any, error) {
	c := entry.Candidate{
		Weight:          args.Weight,
		CalorieTarget:   args.CalorieTarget,
		DeviationAmount: args.DeviationAmount,
	}
	if args.Date != "" {
		d, err := entry.ParseDate(args.Date)
		if err != nil {
			return nil, nil, err
		}
		c.Date = d
	}

	e, err := s.tracker.Record(ctx, c)
	if err != nil {
		return nil, nil, fmt.Errorf("entry not saved: %w", err)
	}

	st, err := s.status(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("entry saved but status failed: %w", err)
	}

	msg := fmt.Sprintf("Saved %.1f kg on %s in phase %d.", e.Weight, entry.FormatDate(e.Date), e.PhaseID)
	if e.Smoothed {
		msg += " Excluded from the trend because the previous day had a deviation."
	}
	out := RecordResult{
		Entry:   toEntryView(e),
		Status:  st,
		Message: msg,
	}
	return nil, out, nil
}

// UndoArgs defines input for kyber_undo.
type UndoArgs struct {
	UserConfirmed bool `json:"user_confirmed" jsonschema:"REQUIRED. Set true ONLY after showing the user the entry that will be removed and receiving approval."`
}

// UndoResult is the output of kyber_undo.
type UndoResult struct {
	Removed EntryView `json:"removed"`
	Message string    `json:"message"`
}

func (s *Server) handleUndo(ctx context.Context, req *mcp.CallToolRequest, args UndoArgs) (*mcp.CallToolResult, any, error) {
	if !args.UserConfirmed {
		return nil, nil, fmt.Errorf("user_confirmed must be true - you must ask the user for permission before deleting an entry")
	}
	removed, err := s.tracker.Undo(ctx)
	if errors.Is(err, journal.ErrEmptyHistory) {
		return nil, nil, fmt.Errorf("nothing to undo: the log is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to undo: %w", err)
	}
	out := UndoResult{
		Removed: toEntryView(removed),
		Message: fmt.Sprintf("Removed the entry for %s (%.1f kg).", entry.FormatDate(removed.Date), removed.Weight),
	}
	return nil, out, nil
}

// HistoryArgs defines input for kyber_history.
type HistoryArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of most recent entries to return (default: all)"`
}

// HistoryResult is the output of kyber_history.
type HistoryResult struct {
	Entries []EntryView `json:"entries"`
	Count   int         `json:"count"`
}

func (s *Server) handleHistory(ctx context.Context, req *mcp.CallToolRequest, args HistoryArgs) (*mcp.CallToolResult, any, error) {
	h, err := s.tracker.History(ctx, args.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read history: %w", err)
	}
	out := HistoryResult{Entries: make([]EntryView, 0, len(h)), Count: len(h)}
	for _, e := range h {
		out.Entries = append(out.Entries, toEntryView(e))
	}
	return nil, out, nil
}

// PhasesArgs defines input for kyber_phases.
type PhasesArgs struct{}

// PhaseView summarizes one phase.
type PhaseView struct {
	ID            int    `json:"id"`
	CalorieTarget int    `json:"calorie_target"`
	From          string `json:"from"`
	To            string `json:"to"`
	Entries       int    `json:"entries"`
	Clean         int    `json:"clean"`
}

// PhasesResult is the output of kyber_phases.
type PhasesResult struct {
	Phases []PhaseView `json:"phases"`
}

func (s *Server) handlePhases(ctx context.Context, req *mcp.CallToolRequest, args PhasesArgs) (*mcp.CallToolResult, any, error) {
	phases, err := s.tracker.Phases(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to summarize phases: %w", err)
	}
	out := PhasesResult{Phases: make([]PhaseView, 0, len(phases))}
	for _, p := range phases {
		out.Phases = append(out.Phases, PhaseView{
			ID:            p.ID,
			CalorieTarget: p.CalorieTarget,
			From:          entry.FormatDate(p.FirstDate),
			To:            entry.FormatDate(p.LastDate),
			Entries:       p.Entries,
			Clean:         p.Clean,
		})
	}
	return nil, out, nil
}
