package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"propsync/internal/conflict"
	"propsync/internal/feeds"
	"propsync/internal/ics"
	"propsync/internal/layout"
	appLog "propsync/internal/log"
	"propsync/internal/model"
	"propsync/internal/web"
)

type ServeCmd struct {
	Listen string `help:"HTTP listen address (overrides config)"`
	NoSync bool   `help:"Do not sync feeds at startup or on schedule" name:"no-sync"`
}

func (c *ServeCmd) Run(a *app) error {
	if c.Listen != "" {
		a.cfg.Listen = c.Listen
	}
	appLog.Info("effective config",
		"listen", a.cfg.Listen,
		"timezone", a.cfg.Timezone,
		"week_start", a.cfg.WeekStart,
		"db_path", a.cfg.DBPath,
		"sync_cron", a.cfg.SyncCron,
		"feeds", len(a.cfg.Feeds),
		"users", len(a.cfg.Users),
	)

	bookings, err := a.bookings()
	if err != nil {
		return err
	}
	mgr, err := a.feeds()
	if err != nil {
		return err
	}
	provider, err := a.authProvider()
	if err != nil {
		return err
	}
	if err := mgr.Seed(a.ctx, a.feedSeeds()); err != nil {
		return errors.Wrap(err, "seed feeds")
	}

	if !c.NoSync {
		sched, err := feeds.NewScheduler(a.cfg.SyncCron, mgr, a.cfg.Location())
		if err != nil {
			return err
		}
		go sched.RunOnce(a.ctx)
		if err := sched.Start(a.ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := web.NewServer(a.cfg, web.Deps{Bookings: bookings, Feeds: mgr, Auth: provider})
	return srv.Start(a.ctx)
}

type ExportCmd struct {
	Name   string `help:"Calendar name (X-WR-CALNAME); defaults to calendar_name from config"`
	Output string `help:"Write to file instead of stdout" short:"o" type:"path"`
}

func (c *ExportCmd) Run(a *app) error {
	events, err := a.events(false)
	if err != nil {
		return err
	}
	name := c.Name
	if name == "" {
		name = a.cfg.CalendarName
	}
	doc := ics.Generate(events, name)
	if c.Output == "" {
		_, err := fmt.Fprint(a.out, doc)
		return err
	}
	if err := os.WriteFile(c.Output, []byte(doc), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", c.Output)
	}
	appLog.Info("calendar exported", "path", c.Output, "events", len(events))
	return nil
}

type ValidateCmd struct {
	File string `arg:"" help:"iCalendar file to check" type:"existingfile"`
	JSON bool   `help:"Print the full result as JSON"`
}

// Run prints the decode result and fails when the file has errors.
func (c *ValidateCmd) Run(a *app) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	res := ics.ParseWithOptions(string(data), ics.ParseOptions{Location: a.cfg.Location()})

	if c.JSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printValidation(a, res)
	}
	if !res.IsValid {
		return errors.Errorf("%s: %d error(s)", c.File, len(res.Errors))
	}
	return nil
}

func printValidation(a *app, res ics.ValidationResult) {
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	fmt.Fprintf(a.out, "version: %s  prodid: %s  events: %d\n", orDash(res.Version), orDash(res.ProdID), len(res.Events))
	for _, e := range res.Errors {
		red.Fprintf(a.out, "error:   %s\n", e)
	}
	for _, w := range res.Warnings {
		yellow.Fprintf(a.out, "warning: %s\n", w)
	}
	if res.IsValid {
		green.Fprintln(a.out, "valid")
	}
}

type LayoutCmd struct {
	Month   string `help:"Month to lay out as YYYY-MM; defaults to the current month"`
	NoFeeds bool   `help:"Only lay out bookings" name:"no-feeds"`
}

func (c *LayoutCmd) Run(a *app) error {
	loc := a.cfg.Location()
	year, month, err := parseMonth(c.Month, time.Now().In(loc))
	if err != nil {
		return err
	}
	events, err := a.events(!c.NoFeeds)
	if err != nil {
		return err
	}

	grid := layout.BuildMonthGrid(year, month, layout.ParseWeekStart(a.cfg.WeekStart), loc)
	segments := layout.LayoutMonth(events, grid.Cells)

	fmt.Fprintf(a.out, "%s %d: %d weeks, %d rows\n", month, year, grid.Weeks(), layout.RowCount(segments))
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WEEK\tROW\tDAYS\tEVENT")
	for _, s := range segments {
		first := grid.Cells[s.WeekIndex*7+s.StartCol]
		last := grid.Cells[s.WeekIndex*7+s.EndCol]
		days := fmt.Sprintf("%s%s-%s%s",
			marker(!s.IsSegmentStart, "<"), first.Date.Format("Jan 2"),
			last.Date.Format("Jan 2"), marker(!s.IsSegmentEnd, ">"))
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", s.WeekIndex+1, s.RowIndex, days, s.Event.Summary)
	}
	return tw.Flush()
}

type ConflictsCmd struct {
	NoFeeds bool `help:"Only check bookings" name:"no-feeds"`
}

func (c *ConflictsCmd) Run(a *app) error {
	events, err := a.events(!c.NoFeeds)
	if err != nil {
		return err
	}
	pairs := conflict.FindConflicts(events)
	if len(pairs) == 0 {
		color.New(color.FgGreen).Fprintln(a.out, "no conflicts")
		return nil
	}

	loc := a.cfg.Location()
	red := color.New(color.FgRed)
	for _, p := range pairs {
		red.Fprintf(a.out, "%s  <->  %s\n", describe(p.A, loc), describe(p.B, loc))
	}
	fmt.Fprintf(a.out, "%d conflict(s) involving %d event(s)\n", len(pairs), len(conflict.Participants(events)))
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(a *app) error {
	fmt.Fprintf(a.out, "propsync %s\n", version)
	return nil
}

// parseMonth reads "YYYY-MM"; an empty string means the month of now.
func parseMonth(s string, now time.Time) (int, time.Month, error) {
	if strings.TrimSpace(s) == "" {
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, errors.Errorf("invalid month %q, want YYYY-MM", s)
	}
	return t.Year(), t.Month(), nil
}

func describe(ev model.CalendarEvent, loc *time.Location) string {
	const f = "Jan 2 15:04"
	return fmt.Sprintf("%s (%s - %s, %s)", ev.Summary, ev.Start.In(loc).Format(f), ev.End.In(loc).Format(f), span(ev.Duration()))
}

// span renders a duration as days, hours and minutes, e.g. "3d3h".
func span(d time.Duration) string {
	const day = 24 * time.Hour
	var sb strings.Builder
	if n := d / day; n > 0 {
		fmt.Fprintf(&sb, "%dd", n)
		d -= n * day
	}
	if h := d / time.Hour; h > 0 {
		fmt.Fprintf(&sb, "%dh", h)
		d -= h * time.Hour
	}
	if m := d / time.Minute; m > 0 || sb.Len() == 0 {
		fmt.Fprintf(&sb, "%dm", m)
	}
	return sb.String()
}

func marker(on bool, m string) string {
	if on {
		return m
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
