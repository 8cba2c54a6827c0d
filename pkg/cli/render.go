package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"branchclock-hq/branchclock/pkg/automation"
	"branchclock-hq/branchclock/pkg/gitwatch"
	"branchclock-hq/branchclock/pkg/storage"
	"branchclock-hq/branchclock/pkg/ticket"
	"branchclock-hq/branchclock/pkg/worklog"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Status sources.
const (
	SourceDaemon = "daemon"
	SourceLocal  = "local"
)

// Status is what `branchclock status` reports. A local status is read from
// disk without a running daemon, so it carries no timer or auth state.
type Status struct {
	State        automation.State      `json:"state"`
	Repositories []gitwatch.BranchInfo `json:"repositories"`
	Source       string                `json:"source"`
}

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithHeader(headers),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithAlignment(tw.Alignment{tw.AlignLeft}),
		tablewriter.WithBorders(tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off}),
	)
}

// RenderStatus prints the timer state and the watched repositories.
func RenderStatus(w io.Writer, st Status, format OutputFormat) error {
	if format == FormatJSON {
		return WriteJSON(w, st)
	}
	if format == FormatCSV {
		return WriteCSV(w, repositoryHeaders, repositoryRows(st.Repositories))
	}

	s := st.State
	timerState := dim("idle")
	if s.IsActive {
		timerState = green("running")
	}
	ticketID := dim("none")
	if s.CurrentTicket != "" {
		ticketID = bold(s.CurrentTicket)
		if s.TicketSummary != "" {
			ticketID += " " + dim(s.TicketSummary)
		}
	}

	fmt.Fprintf(w, "\n%s  %s %s\n", cyan("branchclock"), timerState, s.Elapsed)
	fmt.Fprintf(w, "  %-10s %s\n", "ticket:", ticketID)
	fmt.Fprintf(w, "  %-10s %s\n", "branch:", orDim(s.BranchName))
	fmt.Fprintf(w, "  %-10s auto start %s, auto log %s\n", "settings:", onOff(s.AutoStart), onOff(s.AutoLog))
	if !s.Authenticated && st.Source != SourceLocal {
		fmt.Fprintf(w, "  %s not authenticated, automation paused\n", red("!"))
	}
	if st.Source != "" {
		fmt.Fprintf(w, "  %-10s %s\n", "source:", dim(st.Source))
	}
	fmt.Fprintln(w)

	if len(st.Repositories) == 0 {
		fmt.Fprintf(w, "%s  no repositories found\n\n", yellow("!"))
		return nil
	}
	return RenderRepositories(w, st.Repositories, FormatText)
}

var repositoryHeaders = []string{"Repository", "Branch", "Commit", "Remote"}

func repositoryRows(repos []gitwatch.BranchInfo) [][]string {
	rows := make([][]string, 0, len(repos))
	for _, r := range repos {
		rows = append(rows, []string{r.Path, r.Branch, r.LastCommit, r.RemoteURL})
	}
	return rows
}

// RenderRepositories prints one row per watched repository.
func RenderRepositories(w io.Writer, repos []gitwatch.BranchInfo, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, repos)
	case FormatCSV:
		return WriteCSV(w, repositoryHeaders, repositoryRows(repos))
	}

	table := newTable(w, repositoryHeaders)
	for _, r := range repos {
		branch := r.Branch
		switch branch {
		case gitwatch.BranchDetached, gitwatch.BranchUnknown:
			branch = yellow(branch)
		default:
			if key, ok := ticket.ExtractTicketKey(branch); ok {
				branch = branch + " " + cyan("["+key+"]")
			}
		}
		if err := table.Append([]string{r.Path, branch, dim(shortHash(r.LastCommit)), dim(r.RemoteURL)}); err != nil {
			return err
		}
	}
	return table.Render()
}

var historyHeaders = []string{"Logged", "Ticket", "Minutes", "Trigger", "Jira", "Productive"}

// RenderHistory prints journal entries, newest first.
func RenderHistory(w io.Writer, entries []storage.JournalEntry, format OutputFormat) error {
	switch format {
	case FormatJSON:
		if entries == nil {
			entries = []storage.JournalEntry{}
		}
		return WriteJSON(w, entries)
	case FormatCSV:
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.LoggedAt.Format(time.RFC3339),
				e.TicketID,
				strconv.Itoa(e.Minutes),
				e.Trigger,
				e.JiraWorklogID,
				secondaryStatus(e),
			})
		}
		return WriteCSV(w, historyHeaders, rows)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, dim("no time logged yet"))
		return nil
	}

	table := newTable(w, historyHeaders)
	total := 0
	for _, e := range entries {
		total += e.Minutes
		productive := green(secondaryStatus(e))
		switch {
		case e.SecondarySkipped:
			productive = dim(secondaryStatus(e))
		case e.SecondaryError != "":
			productive = red(secondaryStatus(e))
		}
		if err := table.Append([]string{
			e.LoggedAt.Local().Format("2006-01-02 15:04"),
			bold(e.TicketID),
			strconv.Itoa(e.Minutes),
			e.Trigger,
			green(e.JiraWorklogID),
			productive,
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s  %d entries, %s total\n\n", cyan("branchclock"), len(entries), FormatMinutes(total))
	return nil
}

func secondaryStatus(e storage.JournalEntry) string {
	switch {
	case e.SecondarySkipped:
		return "skipped"
	case e.SecondaryError != "":
		return "failed: " + e.SecondaryError
	case e.TimeEntryID != "":
		return e.TimeEntryID
	default:
		return "ok"
	}
}

// RenderTicket prints a resolve result. A nil info means the branch has
// no ticket.
func RenderTicket(w io.Writer, branch string, info *ticket.Info, format OutputFormat) error {
	if format == FormatJSON {
		return WriteJSON(w, struct {
			Branch string       `json:"branch"`
			Ticket *ticket.Info `json:"ticket"`
		}{branch, info})
	}
	if info == nil {
		fmt.Fprintf(w, "%s  %s has no ticket\n", yellow("!"), branch)
		return nil
	}
	fmt.Fprintf(w, "%s  %s -> %s (%s)\n", green("✔"), branch, bold(info.TicketID), info.ProjectKey)
	if info.Summary != "" {
		fmt.Fprintf(w, "  %s\n", info.Summary)
	}
	if info.Status != "" {
		fmt.Fprintf(w, "  %s %s\n", dim("status:"), info.Status)
	}
	return nil
}

// RenderResult prints the outcome of a logging attempt.
func RenderResult(w io.Writer, ticketID string, minutes int, r *worklog.Result, format OutputFormat) error {
	if format == FormatJSON {
		return WriteJSON(w, r)
	}
	logged := fmt.Sprintf("%s to %s", FormatMinutes(minutes), bold(ticketID))
	switch {
	case r.SecondarySucceeded:
		fmt.Fprintf(w, "%s  logged %s in Jira and Productive\n", green("✔"), logged)
		fmt.Fprintf(w, "  %s project %s (%s), service %s (%s)\n", dim("productive:"),
			r.ProjectID, r.ProjectConfidence, r.ServiceID, r.ServiceConfidence)
	case r.SecondarySkipped:
		fmt.Fprintf(w, "%s  logged %s in Jira\n", green("✔"), logged)
	default:
		fmt.Fprintf(w, "%s  logged %s in Jira only\n", yellow("!"), logged)
		fmt.Fprintf(w, "  %s %s\n", red("productive failed:"), r.SecondaryError)
	}
	return nil
}

// FormatMinutes renders minutes as "1h 05m" or "45m".
func FormatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}

func onOff(b bool) string {
	if b {
		return green("on")
	}
	return dim("off")
}

func orDim(s string) string {
	if s == "" {
		return dim("none")
	}
	return s
}
