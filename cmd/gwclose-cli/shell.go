package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gwclose/gwclose/internal/closure"
	"github.com/gwclose/gwclose/internal/config"
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/geom"
	"github.com/gwclose/gwclose/internal/log"
	"github.com/gwclose/gwclose/internal/pipeline"
	"github.com/gwclose/gwclose/internal/session"
	"github.com/gwclose/gwclose/internal/trails"
	"github.com/gwclose/gwclose/internal/workflow"
)

var errUsage = errors.New("wrong number of arguments")

type command struct {
	Name    string
	Args    string
	Summary string
	Group   string
	run     func(sh *shell, arg string) (string, error)
}

func (c command) termOutput(indent string) string {
	return fmt.Sprintf("%s%s %s\n%s  summary: %s\n%s  group: %s",
		indent, strings.ToUpper(c.Name), c.Args, indent, c.Summary, indent, c.Group)
}

var commands = map[string]command{}

func init() {
	for _, c := range []command{
		{"load", "[source]", "Load the trails from a GeoJSON file, shapefile or URL", "trails", (*shell).cmdLoad},
		{"trails", "[key pattern]", "Show the loaded trails, or count the trails matching a property pattern", "trails", (*shell).cmdTrails},
		{"provider", "[name]", "Show or change the geometry provider", "trails", (*shell).cmdProvider},
		{"draw", "", "Start drawing a new closure polygon", "workflow", (*shell).cmdDraw},
		{"polygon", "file|geojson", "Clip the trails to a finished or edited polygon", "workflow", (*shell).cmdPolygon},
		{"delete", "", "Delete the polygon and the closure candidate", "workflow", (*shell).cmdDelete},
		{"state", "", "Show the workflow state", "workflow", (*shell).cmdState},
		{"candidate", "", "Show the closure candidate as GeoJSON", "workflow", (*shell).cmdCandidate},
		{"set", "field value", "Set a closure attribute (title, status, description, start, end)", "closure", (*shell).cmdSet},
		{"attrs", "", "Show the closure attributes", "closure", (*shell).cmdAttrs},
		{"statuses", "", "List the closure statuses", "closure", (*shell).cmdStatuses},
		{"submit", "", "Submit the closure candidate to the feature service", "closure", (*shell).cmdSubmit},
		{"record", "objectid", "Show a created closure", "closure", (*shell).cmdRecord},
		{"signin", "", "Sign in with the configured application credentials", "session", (*shell).cmdSignIn},
		{"signout", "", "Sign out", "session", (*shell).cmdSignOut},
		{"session", "", "Show the session", "session", (*shell).cmdSession},
	} {
		commands[c.Name] = c
	}
}

type shell struct {
	ctx      context.Context
	cfg      *config.Config
	provider geom.Provider
	trails   *trails.Dataset
	service  workflow.Service
	store    *session.Store
	auth     *session.Authenticator
	notifier workflow.Notifier
	wf       *workflow.Workflow
	attrs    closure.Attributes
}

func newShell(ctx context.Context, cfg *config.Config, service workflow.Service,
	store *session.Store, notifier workflow.Notifier,
) (*shell, error) {
	p, err := geom.ByName(cfg.Provider)
	if err != nil {
		return nil, err
	}
	sh := &shell{
		ctx:      ctx,
		cfg:      cfg,
		provider: p,
		service:  service,
		store:    store,
		notifier: notifier,
		auth: &session.Authenticator{
			Portal:       cfg.PortalURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Username:     cfg.Username,
		},
	}
	sh.reset()
	return sh, nil
}

func (sh *shell) reset() {
	opts := workflow.Options{
		Provider: sh.provider,
		Trails:   sh,
		Service:  sh.service,
		Notifier: sh.notifier,
	}
	if sh.store != nil {
		opts.Sessions = sh.store
	}
	sh.wf = workflow.New(opts)
}

// Candidates lets the workflow see trails loaded after it was created.
func (sh *shell) Candidates(poly *feature.Polygon) *feature.Collection {
	if sh.trails == nil {
		return nil
	}
	return sh.trails.Candidates(poly)
}

// exec runs one command line.
func (sh *shell) exec(line string) (string, error) {
	name, arg := splitCommand(line)
	c, ok := commands[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("unknown command '%s'", name)
	}
	return c.run(sh, arg)
}

func splitCommand(line string) (name, arg string) {
	line = strings.TrimSpace(line)
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i], strings.TrimSpace(line[i+1:])
	}
	return line, ""
}

func (sh *shell) ensureTrails() error {
	if sh.trails != nil {
		return nil
	}
	_, err := sh.cmdLoad("")
	return err
}

func (sh *shell) cmdLoad(arg string) (string, error) {
	src := arg
	if src == "" {
		src = sh.cfg.TrailsURL
	}
	ds, err := trails.Load(sh.ctx, src, nil)
	if err != nil {
		return "", err
	}
	if sh.cfg.TrailsFilterKey != "" {
		ds = ds.Filter(sh.cfg.TrailsFilterKey, sh.cfg.TrailsFilterPattern)
	}
	sh.trails = ds
	return fmt.Sprintf("loaded %d trails from %s", ds.Len(), src), nil
}

func (sh *shell) cmdTrails(arg string) (string, error) {
	if err := sh.ensureTrails(); err != nil {
		return "", err
	}
	if arg == "" {
		return fmt.Sprintf("%d trails from %s (%d skipped)",
			sh.trails.Len(), sh.trails.Source, sh.trails.Skipped), nil
	}
	key, pattern := splitCommand(arg)
	if pattern == "" {
		return "", errUsage
	}
	return fmt.Sprintf("%d trails match %s=%s", sh.trails.Filter(key, pattern).Len(), key, pattern), nil
}

func (sh *shell) cmdProvider(arg string) (string, error) {
	if arg == "" {
		return sh.provider.Name(), nil
	}
	p, err := geom.ByName(arg)
	if err != nil {
		return "", err
	}
	if st := sh.wf.State(); st != workflow.Idle {
		return "", fmt.Errorf("%w: provider while %s", workflow.ErrInvalidTransition, st)
	}
	sh.provider = p
	sh.reset()
	return "provider " + p.Name(), nil
}

func (sh *shell) cmdDraw(arg string) (string, error) {
	if err := sh.wf.DrawStart(); err != nil {
		return "", err
	}
	return sh.wf.State().String(), nil
}

func readPolygon(arg string) (*feature.Polygon, error) {
	if arg == "" {
		return nil, errUsage
	}
	data := []byte(arg)
	if !strings.HasPrefix(arg, "{") {
		var err error
		if data, err = os.ReadFile(arg); err != nil {
			return nil, err
		}
	}
	return feature.DecodePolygon(data)
}

func (sh *shell) cmdPolygon(arg string) (string, error) {
	poly, err := readPolygon(arg)
	if err != nil {
		return "", err
	}
	if err := sh.ensureTrails(); err != nil {
		return "", err
	}
	var stats pipeline.Stats
	if sh.wf.State() == workflow.ClipReady {
		stats, err = sh.wf.EditVertex(poly)
	} else {
		stats, err = sh.wf.DrawCreated(poly)
	}
	if err != nil {
		return "", err
	}
	return formatStats(stats), nil
}

func formatStats(stats pipeline.Stats) string {
	if stats.Parts == 0 {
		return fmt.Sprintf("no trails inside the polygon (%d examined)", stats.Visited)
	}
	return fmt.Sprintf("%d parts from %d trails, %d kept whole, %d split (clip %s, dissolve %s)",
		stats.Parts, stats.Visited, stats.Kept, stats.Split,
		stats.Clip.Round(time.Microsecond), stats.Dissolve.Round(time.Microsecond))
}

func (sh *shell) cmdDelete(arg string) (string, error) {
	if err := sh.wf.Delete(); err != nil {
		return "", err
	}
	return sh.wf.State().String(), nil
}

func (sh *shell) cmdState(arg string) (string, error) {
	snap := sh.wf.Snapshot()
	out := snap.State.String()
	if snap.State == workflow.ClipReady {
		out += ": " + formatStats(snap.Stats)
	}
	return out, nil
}

func (sh *shell) cmdCandidate(arg string) (string, error) {
	snap := sh.wf.Snapshot()
	if snap.Candidate == nil {
		return "", workflow.ErrNothingToSubmit
	}
	return string(feature.EncodeCollection(snap.Candidate)), nil
}

func (sh *shell) cmdSet(arg string) (string, error) {
	field, value := splitCommand(arg)
	switch strings.ToLower(field) {
	case "title":
		sh.attrs.Title = value
	case "status":
		st := closure.ParseStatus(value)
		if st == closure.Unknown {
			return "", fmt.Errorf("unknown status '%s'", value)
		}
		sh.attrs.Status = st.Code()
	case "description", "desc":
		sh.attrs.Description = value
	case "start":
		if _, err := closure.ParseDate(value); err != nil {
			return "", err
		}
		sh.attrs.StartDate = value
	case "end":
		if _, err := closure.ParseDate(value); err != nil {
			return "", err
		}
		sh.attrs.EndDate = value
	default:
		return "", errUsage
	}
	return "OK", nil
}

func (sh *shell) cmdAttrs(arg string) (string, error) {
	if sh.attrs == (closure.Attributes{}) {
		return "(empty)", nil
	}
	return formatItems(closure.Summary(sh.attrs.Properties())), nil
}

func formatItems(items []closure.Item) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", it.Label, it.Value)
	}
	return b.String()
}

func (sh *shell) cmdStatuses(arg string) (string, error) {
	var lines []string
	for _, st := range closure.Statuses() {
		lines = append(lines, fmt.Sprintf("%-14s %-22s %s", st.Code(), st, st.Color()))
	}
	return strings.Join(lines, "\n"), nil
}

func (sh *shell) cmdSubmit(arg string) (string, error) {
	rec, err := sh.wf.Submit(sh.ctx, sh.attrs)
	if err != nil {
		return "", err
	}
	sh.attrs = closure.Attributes{}
	return fmt.Sprintf("created closure %d\n%s", rec.ObjectID, formatItems(rec.Summary)), nil
}

func (sh *shell) cmdRecord(arg string) (string, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return "", errUsage
	}
	var token string
	if sh.store != nil {
		token, _ = sh.store.Token()
	}
	f, err := sh.service.Record(sh.ctx, token, id)
	if err != nil {
		return "", err
	}
	return formatItems(closure.Summary(f.Properties)), nil
}

func (sh *shell) cmdSignIn(arg string) (string, error) {
	if sh.store == nil {
		return "", errors.New("no session store")
	}
	sess, err := sh.auth.SignIn(sh.ctx)
	if err != nil {
		return "", err
	}
	if err := sh.store.Save(sess); err != nil {
		return "", err
	}
	log.Debugf("session expires %s", sess.Expires)
	return "signed in as " + sess.Username, nil
}

func (sh *shell) cmdSignOut(arg string) (string, error) {
	if sh.store == nil {
		return "", errors.New("no session store")
	}
	if err := sh.store.Clear(); err != nil {
		return "", err
	}
	return "signed out", nil
}

func (sh *shell) cmdSession(arg string) (string, error) {
	if sh.store == nil {
		return "", errors.New("no session store")
	}
	sess, err := sh.store.Load()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s on %s until %s", sess.Username, sess.Portal,
		sess.Expires.Format(time.RFC1123)), nil
}

func commandNames() []string {
	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
