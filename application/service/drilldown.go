package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/specmem/specmem/domain/code"
	"github.com/specmem/specmem/domain/drilldown"
	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/repository"
	"github.com/specmem/specmem/domain/search"
	"github.com/specmem/specmem/internal/database"
)

const (
	// sessionScanWindow is how many session rows one fetch pulls in for
	// pairing and conversation context.
	sessionScanWindow = 50

	// contextBefore and contextAfter bound the conversation rows shown
	// around the pivot.
	contextBefore = 3
	contextAfter  = 3

	// contextPreviewChars bounds child row previews in the rendered view.
	contextPreviewChars = 100

	defaultRelatedLimit = 3
	defaultCodeRefLimit = 5
	defaultDrillZoom    = 50
)

// View is one drilldown result: a MemoryView or a CodeView depending on
// what the handle points at.
type View interface {
	// Handle returns the drilldown handle that was resolved.
	Handle() int
	// Kind reports which branch produced the view.
	Kind() drilldown.EntryType
	// Render produces the stable human-readable block.
	Render() string
}

// CodeView is the code branch of a drilldown: one definition or one
// whole file, content cut to the zoom budget.
type CodeView struct {
	handle    int
	filePath  string
	name      string
	defType   string
	language  string
	lineRange string
	content   string
}

// Handle returns the resolved drilldown handle.
func (v CodeView) Handle() int { return v.handle }

// Kind returns the code entry type.
func (v CodeView) Kind() drilldown.EntryType { return drilldown.TypeCode }

// FilePath returns the source file path.
func (v CodeView) FilePath() string { return v.filePath }

// Name returns the definition name, empty for whole-file views.
func (v CodeView) Name() string { return v.name }

// DefType returns the definition kind, empty for whole-file views.
func (v CodeView) DefType() string { return v.defType }

// Language returns the source language when known.
func (v CodeView) Language() string { return v.language }

// LineRange returns "start-end" for definitions, empty otherwise.
func (v CodeView) LineRange() string { return v.lineRange }

// Content returns the zoom-budgeted source text.
func (v CodeView) Content() string { return v.content }

// Render produces the code block shown to the model.
func (v CodeView) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[CODE #%d] %s\n", v.handle, v.filePath)
	if v.name != "" {
		fmt.Fprintf(&b, "%s %s", v.defType, v.name)
		if v.lineRange != "" {
			fmt.Fprintf(&b, " (lines %s)", v.lineRange)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n" + v.content + "\n")
	b.WriteString("[/CODE]")
	return b.String()
}

// MemoryRef is one child memory in a MemoryView, carrying the handle
// minted for it.
type MemoryRef struct {
	handle     int
	mem        memory.Memory
	similarity float64
}

// Handle returns the child's drilldown handle.
func (r MemoryRef) Handle() int { return r.handle }

// Memory returns the child memory.
func (r MemoryRef) Memory() memory.Memory { return r.mem }

// Similarity returns the vector similarity for related memories, zero
// for session rows.
func (r MemoryRef) Similarity() float64 { return r.similarity }

// CodeRef is one code pointer in a MemoryView.
type CodeRef struct {
	handle int
	ptr    code.Pointer
}

// Handle returns the child's drilldown handle.
func (r CodeRef) Handle() int { return r.handle }

// Pointer returns the code pointer.
func (r CodeRef) Pointer() code.Pointer { return r.ptr }

// MemoryView is the memory branch of a drilldown: the pivot memory, its
// paired message, surrounding conversation, related memories, and code
// references, each registered for further drilldown.
type MemoryView struct {
	handle    int
	mem       memory.Memory
	paired    MemoryRef
	hasPaired bool
	before    []MemoryRef
	after     []MemoryRef
	related   []MemoryRef
	codeRefs  []CodeRef
	childIDs  []int
}

// Handle returns the resolved drilldown handle.
func (v MemoryView) Handle() int { return v.handle }

// Kind returns the memory entry type.
func (v MemoryView) Kind() drilldown.EntryType { return drilldown.TypeMemory }

// Memory returns the pivot memory with its full content.
func (v MemoryView) Memory() memory.Memory { return v.mem }

// Paired returns the opposite-role message closest to the pivot, comma-ok.
func (v MemoryView) Paired() (MemoryRef, bool) { return v.paired, v.hasPaired }

// Before returns the conversation rows preceding the pivot, oldest first.
func (v MemoryView) Before() []MemoryRef { return copyRefs(v.before) }

// After returns the conversation rows following the pivot, oldest first.
func (v MemoryView) After() []MemoryRef { return copyRefs(v.after) }

// Related returns the nearest neighbours by vector distance.
func (v MemoryView) Related() []MemoryRef { return copyRefs(v.related) }

// CodeRefs returns the code pointers attached to the pivot.
func (v MemoryView) CodeRefs() []CodeRef {
	out := make([]CodeRef, len(v.codeRefs))
	copy(out, v.codeRefs)
	return out
}

// ChildDrilldownIDs returns every handle minted while building the view.
func (v MemoryView) ChildDrilldownIDs() []int {
	out := make([]int, len(v.childIDs))
	copy(out, v.childIDs)
	return out
}

func copyRefs(refs []MemoryRef) []MemoryRef {
	out := make([]MemoryRef, len(refs))
	copy(out, refs)
	return out
}

// Render produces the memory block shown to the model.
func (v MemoryView) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[MEMORY #%d]\n", v.handle)
	if role := v.mem.Role(); role != "" {
		fmt.Fprintf(&b, "Role: %s | ", role)
	}
	fmt.Fprintf(&b, "Date: %s\n\n", v.mem.CreatedAt().Format("2006-01-02 15:04"))
	b.WriteString(v.mem.Content() + "\n")

	if v.hasPaired {
		fmt.Fprintf(&b, "\nPaired #%d [%s]: %s\n",
			v.paired.handle, v.paired.mem.Role(),
			search.Preview(v.paired.mem.Content(), pairedPreviewChars))
	}
	renderRefs(&b, "Before:", v.before)
	renderRefs(&b, "After:", v.after)
	if len(v.related) > 0 {
		b.WriteString("\nRelated:\n")
		for _, ref := range v.related {
			fmt.Fprintf(&b, "  #%d (%.2f) %s\n", ref.handle, ref.similarity,
				search.Preview(ref.mem.Content(), contextPreviewChars))
		}
	}
	if len(v.codeRefs) > 0 {
		b.WriteString("\nCode refs:\n")
		for _, ref := range v.codeRefs {
			fmt.Fprintf(&b, "  #%d %s:%d-%d", ref.handle,
				ref.ptr.FilePath(), ref.ptr.LineStart(), ref.ptr.LineEnd())
			if ref.ptr.FunctionName() != "" {
				fmt.Fprintf(&b, " (%s)", ref.ptr.FunctionName())
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("[/MEMORY]")
	return b.String()
}

func renderRefs(b *strings.Builder, label string, refs []MemoryRef) {
	if len(refs) == 0 {
		return
	}
	b.WriteString("\n" + label + "\n")
	for _, ref := range refs {
		role := ref.mem.Role()
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(b, "  #%d [%s] %s\n", ref.handle, role,
			search.Preview(ref.mem.Content(), contextPreviewChars))
	}
}

// Drilldown expands one handle into a full view: code content cut to the
// zoom budget, or a memory with its conversational neighbourhood.
type Drilldown struct {
	registry     *drilldown.Registry
	memories     memory.Store
	searcher     search.Searcher
	defs         code.DefinitionStore
	files        code.FileStore
	pointers     code.PointerStore
	logger       *slog.Logger
	relatedLimit int
	codeRefLimit int
}

// DrilldownServiceOption configures a Drilldown.
type DrilldownServiceOption func(*Drilldown)

// WithRelatedLimit caps the related-memory fan-out.
func WithRelatedLimit(n int) DrilldownServiceOption {
	return func(s *Drilldown) {
		if n > 0 {
			s.relatedLimit = n
		}
	}
}

// WithCodeRefLimit caps the code-reference fan-out.
func WithCodeRefLimit(n int) DrilldownServiceOption {
	return func(s *Drilldown) {
		if n > 0 {
			s.codeRefLimit = n
		}
	}
}

// NewDrilldown creates the drilldown service. searcher, defs, files,
// and pointers may be nil; the matching enrichment is skipped.
func NewDrilldown(
	registry *drilldown.Registry,
	memories memory.Store,
	searcher search.Searcher,
	defs code.DefinitionStore,
	files code.FileStore,
	pointers code.PointerStore,
	logger *slog.Logger,
	options ...DrilldownServiceOption,
) *Drilldown {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Drilldown{
		registry:     registry,
		memories:     memories,
		searcher:     searcher,
		defs:         defs,
		files:        files,
		pointers:     pointers,
		logger:       logger,
		relatedLimit: defaultRelatedLimit,
		codeRefLimit: defaultCodeRefLimit,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

type drillParams struct {
	zoom           int
	includeContext bool
}

// DrillOption adjusts one drilldown call.
type DrillOption func(*drillParams)

// WithDrillZoom sets the 0-100 content zoom for code views.
func WithDrillZoom(zoom int) DrillOption {
	return func(p *drillParams) { p.zoom = zoom }
}

// WithConversationContext toggles the before/after session rows.
func WithConversationContext(include bool) DrillOption {
	return func(p *drillParams) { p.includeContext = include }
}

// Resolve expands a handle reference: a numeric handle or a memory-id
// prefix. An unknown reference returns ok=false, not an error.
func (s *Drilldown) Resolve(ctx context.Context, ref string, options ...DrillOption) (View, bool, error) {
	entry, ok := s.registry.Resolve(ref)
	if !ok {
		return nil, false, nil
	}
	return s.view(ctx, entry, options...)
}

// ResolveHandle expands a numeric handle.
func (s *Drilldown) ResolveHandle(ctx context.Context, id int, options ...DrillOption) (View, bool, error) {
	entry, ok := s.registry.ResolveID(id)
	if !ok {
		return nil, false, nil
	}
	return s.view(ctx, entry, options...)
}

func (s *Drilldown) view(ctx context.Context, entry drilldown.Entry, options ...DrillOption) (View, bool, error) {
	params := drillParams{zoom: defaultDrillZoom, includeContext: true}
	for _, option := range options {
		option(&params)
	}

	if entry.Type() == drilldown.TypeCode {
		return s.codeView(ctx, entry, params)
	}
	return s.memoryView(ctx, entry, params)
}

// Memory returns the memory behind a handle or raw id without the
// drilldown fan-out. A missing memory returns ok=false.
func (s *Drilldown) Memory(ctx context.Context, ref string) (memory.Memory, bool, error) {
	id := strings.TrimSpace(ref)
	if entry, ok := s.registry.Resolve(ref); ok && entry.Type() != drilldown.TypeCode {
		id = entry.MemoryID()
	}
	mem, err := s.memories.Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return memory.Memory{}, false, nil
	}
	if err != nil {
		return memory.Memory{}, false, fmt.Errorf("load memory %s: %w", id, err)
	}
	return mem, true, nil
}

func (s *Drilldown) codeView(ctx context.Context, entry drilldown.Entry, params drillParams) (View, bool, error) {
	path, name := splitCodeKey(entry.MemoryID())
	limit, signatureOnly := search.ZoomBudget(params.zoom)

	if name != "" && s.defs != nil {
		def, err := s.defs.GetByFileAndName(ctx, path, name)
		switch {
		case err == nil:
			content := def.Content()
			if signatureOnly && def.Signature() != "" {
				content = def.Signature()
			}
			return CodeView{
				handle:    entry.ID(),
				filePath:  def.FilePath(),
				name:      def.Name(),
				defType:   def.Type(),
				language:  def.Language(),
				lineRange: def.LineRange(),
				content:   search.TruncateAtLineBoundary(content, limit),
			}, true, nil
		case errors.Is(err, database.ErrNotFound), errors.Is(err, code.ErrTableMissing):
			// Fall back to the whole-file view.
		default:
			return nil, false, fmt.Errorf("load code definition %s: %w", entry.MemoryID(), err)
		}
	}

	if s.files == nil {
		return nil, false, nil
	}
	file, err := s.files.GetByPath(ctx, path)
	if errors.Is(err, database.ErrNotFound) || errors.Is(err, code.ErrTableMissing) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load file %s: %w", path, err)
	}
	return CodeView{
		handle:   entry.ID(),
		filePath: file.Path(),
		language: file.LanguageID(),
		content:  search.TruncateAtLineBoundary(file.Content(), limit),
	}, true, nil
}

func (s *Drilldown) memoryView(ctx context.Context, entry drilldown.Entry, params drillParams) (View, bool, error) {
	mem, err := s.memories.Get(ctx, entry.MemoryID())
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load memory %s: %w", entry.MemoryID(), err)
	}

	var (
		sessionRows []memory.Memory
		related     []search.Match
		pointers    []code.Pointer
	)
	g, gctx := errgroup.WithContext(ctx)
	if sid := mem.SessionID(); sid != "" {
		g.Go(func() error {
			rows, err := s.memories.FindBySession(gctx, sid, sessionScanWindow)
			if err != nil {
				s.logger.Warn("session context fetch failed",
					slog.String("memory_id", mem.ID()),
					slog.String("error", err.Error()))
				return nil
			}
			sessionRows = rows
			return nil
		})
	}
	if s.searcher != nil && mem.HasEmbedding() {
		g.Go(func() error {
			matches, err := s.searcher.Search(gctx,
				search.WithEmbedding(mem.Embedding()),
				search.WithExcludeID(mem.ID()),
				repository.WithLimit(s.relatedLimit))
			if err != nil {
				s.logger.Warn("related memory fetch failed",
					slog.String("memory_id", mem.ID()),
					slog.String("error", err.Error()))
				return nil
			}
			related = matches
			return nil
		})
	}
	if s.pointers != nil {
		g.Go(func() error {
			ptrs, err := s.pointers.FindByMemory(gctx, mem.ID(), s.codeRefLimit)
			if err != nil {
				if !errors.Is(err, code.ErrTableMissing) {
					s.logger.Warn("code reference fetch failed",
						slog.String("memory_id", mem.ID()),
						slog.String("error", err.Error()))
				}
				return nil
			}
			pointers = ptrs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	view := MemoryView{handle: entry.ID(), mem: mem}

	// The same row can surface through more than one path, the paired
	// message being an after-context row for instance; its handle is
	// listed once.
	seen := make(map[int]struct{})
	addChild := func(handle int) {
		if _, dup := seen[handle]; dup {
			return
		}
		seen[handle] = struct{}{}
		view.childIDs = append(view.childIDs, handle)
	}

	if paired, ok := pairedMessage(mem, sessionRows); ok {
		handle := s.registry.Register(paired.ID(), drilldown.TypeMemory, drilldown.WithParent(entry.ID()))
		view.paired = MemoryRef{handle: handle, mem: paired}
		view.hasPaired = true
		addChild(handle)
	}

	if params.includeContext {
		before, after := contextWindow(mem, sessionRows)
		for _, row := range before {
			handle := s.registry.Register(row.ID(), drilldown.TypeContext, drilldown.WithParent(entry.ID()))
			view.before = append(view.before, MemoryRef{handle: handle, mem: row})
			addChild(handle)
		}
		for _, row := range after {
			handle := s.registry.Register(row.ID(), drilldown.TypeContext, drilldown.WithParent(entry.ID()))
			view.after = append(view.after, MemoryRef{handle: handle, mem: row})
			addChild(handle)
		}
	}

	for _, match := range related {
		handle := s.registry.Register(match.Memory().ID(), drilldown.TypeMemory, drilldown.WithParent(entry.ID()))
		view.related = append(view.related, MemoryRef{handle: handle, mem: match.Memory(), similarity: match.Similarity()})
		addChild(handle)
	}
	for _, ptr := range pointers {
		key := ptr.FilePath()
		if ptr.FunctionName() != "" {
			key += ":" + ptr.FunctionName()
		}
		handle := s.registry.Register(key, drilldown.TypeCode, drilldown.WithParent(entry.ID()))
		view.codeRefs = append(view.codeRefs, CodeRef{handle: handle, ptr: ptr})
		addChild(handle)
	}

	return view, true, nil
}

// pairedMessage finds the conversational counterpart of the pivot: the
// closest opposite-role row on the correct time side, the question
// before the reply or the reply after the question. Tool records never
// pair.
func pairedMessage(pivot memory.Memory, rows []memory.Memory) (memory.Memory, bool) {
	opposite := memory.OppositeRole(pivot.Role())
	if opposite == "" {
		return memory.Memory{}, false
	}

	pivotAt := pivot.Timestamp()
	var (
		best   memory.Memory
		bestAt = pivotAt
		found  bool
	)
	for _, row := range rows {
		if row.ID() == pivot.ID() || row.IsToolRecord() || row.Role() != opposite {
			continue
		}
		at := row.Timestamp()
		if pivot.Role() == memory.RoleUser {
			if at.Before(pivotAt) {
				continue
			}
			if !found || at.Before(bestAt) {
				best, bestAt, found = row, at, true
			}
		} else {
			if at.After(pivotAt) {
				continue
			}
			if !found || at.After(bestAt) {
				best, bestAt, found = row, at, true
			}
		}
	}
	return best, found
}

// contextWindow partitions session rows around the pivot by creation
// time, keeping the last few before it and the first few after it.
// rows arrive ordered by created_at ascending.
func contextWindow(pivot memory.Memory, rows []memory.Memory) (before, after []memory.Memory) {
	for _, row := range rows {
		if row.ID() == pivot.ID() {
			continue
		}
		if row.CreatedAt().After(pivot.CreatedAt()) {
			after = append(after, row)
		} else {
			before = append(before, row)
		}
	}
	if len(before) > contextBefore {
		before = before[len(before)-contextBefore:]
	}
	if len(after) > contextAfter {
		after = after[:contextAfter]
	}
	return before, after
}

// splitCodeKey parses "filePath" or "filePath:defName". A prefix without
// a slash is a Windows drive letter, not a path, and stays attached.
func splitCodeKey(key string) (path, name string) {
	idx := strings.LastIndex(key, ":")
	if idx <= 0 {
		return key, ""
	}
	prefix := key[:idx]
	if !strings.Contains(prefix, "/") {
		return key, ""
	}
	return prefix, key[idx+1:]
}
