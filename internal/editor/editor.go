package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/illarion/notelock/internal/items"
	"github.com/illarion/notelock/internal/notify"
)

var (
	ErrNoteNotFound = errors.New("note not found")
	ErrClosed       = errors.New("editor closed")
	ErrNoNote       = errors.New("editor has no note")
)

// DataLayer is the part of the note database an Editor depends on.
type DataLayer interface {
	FindItem(uuid string) (*items.Item, error)
	CreateTemplateItem(kind items.ContentType, content items.Content) (*items.Item, error)
	ChangeItem(ctx context.Context, uuid string, mutate func(*items.Mutator)) (*items.Item, error)
	StreamItems(kind items.ContentType, handler items.StreamHandler) (cancel func())
	InsertItem(ctx context.Context, item *items.Item) (*items.Item, error)
}

// NoteChangeObserver is called when the editor switches to a different note
type NoteChangeObserver func(note *items.Item)

// NoteValueChangeObserver is called when the bound note's value changes
type NoteValueChangeObserver func(note *items.Item, source items.PayloadSource)

// Editor binds one note and keeps it in sync with the data layer. The screen
// that creates an Editor owns it and must call Deinit when done.
type Editor struct {
	logger *zap.Logger

	mu           sync.Mutex
	app          DataLayer
	note         *items.Item
	isTemplate   bool
	removeStream func()

	noteChangeObservers      *notify.Registry[NoteChangeObserver]
	noteValueChangeObservers *notify.Registry[NoteValueChangeObserver]
}

// New creates an unbound editor. Call Init to bind a note.
func New(app DataLayer, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("editor")
	return &Editor{
		app:                      app,
		logger:                   logger,
		noteChangeObservers:      notify.New[NoteChangeObserver]("editor:note", logger),
		noteValueChangeObservers: notify.New[NoteValueChangeObserver]("editor:value", logger),
	}
}

func (e *Editor) dataLayer() (DataLayer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.app == nil {
		return nil, ErrClosed
	}
	return e.app, nil
}

// Init binds the note identified by noteUUID, or a fresh placeholder note
// when noteUUID is empty, and subscribes to note changes until Deinit.
func (e *Editor) Init(ctx context.Context, noteUUID, title, tagUUID string) error {
	app, err := e.dataLayer()
	if err != nil {
		return err
	}

	if noteUUID != "" {
		note, err := app.FindItem(noteUUID)
		if err != nil || note.ContentType != items.ContentTypeNote {
			return fmt.Errorf("%w: %s", ErrNoteNotFound, noteUUID)
		}
		e.mu.Lock()
		e.note = note
		e.mu.Unlock()
	} else if err := e.Reset(ctx, title, tagUUID); err != nil {
		return err
	}

	cancel := app.StreamItems(items.ContentTypeNote, e.handleNoteStream)

	e.mu.Lock()
	e.removeStream = cancel
	e.mu.Unlock()
	return nil
}

// Deinit cancels the note stream, drops all observers and releases the data
// layer. Safe to call more than once.
func (e *Editor) Deinit() {
	e.mu.Lock()
	cancel := e.removeStream
	e.removeStream = nil
	e.app = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.noteChangeObservers.Clear()
	e.noteValueChangeObservers.Clear()
}

// handleNoteStream updates the bound note whenever the stream carries it.
// Batches without the bound note leave the editor untouched.
func (e *Editor) handleNoteStream(batch []*items.Item, source items.PayloadSource) {
	e.mu.Lock()
	if e.note == nil || e.app == nil {
		e.mu.Unlock()
		return
	}
	var match *items.Item
	for _, item := range batch {
		if item.UUID == e.note.UUID {
			match = item
			break
		}
	}
	if match == nil {
		e.mu.Unlock()
		return
	}
	e.isTemplate = false
	e.note = match
	e.mu.Unlock()

	e.logger.Debug("note value changed",
		zap.String("uuid", match.UUID),
		zap.Stringer("source", source))
	e.onNoteValueChange(match, source)
}

// InsertTemplatedNote saves the placeholder note
func (e *Editor) InsertTemplatedNote(ctx context.Context) (*items.Item, error) {
	app, err := e.dataLayer()
	if err != nil {
		return nil, err
	}
	note := e.Note()
	if note == nil {
		return nil, ErrNoNote
	}
	return app.InsertItem(ctx, note)
}

// Reset reverts the editor to a blank state by binding a new placeholder
// note. If tagUUID is set, the tag gains a relationship to the placeholder
// before it is bound.
func (e *Editor) Reset(ctx context.Context, title, tagUUID string) error {
	app, err := e.dataLayer()
	if err != nil {
		return err
	}

	note, err := app.CreateTemplateItem(items.ContentTypeNote, items.Content{
		Text:       "",
		Title:      title,
		References: []items.Reference{},
	})
	if err != nil {
		return fmt.Errorf("failed to create placeholder note: %w", err)
	}

	if tagUUID != "" {
		_, err := app.ChangeItem(ctx, tagUUID, func(m *items.Mutator) {
			m.AddItemAsRelationship(note)
		})
		if err != nil {
			return fmt.Errorf("failed to tag placeholder note: %w", err)
		}
	}

	e.SetNote(note, true)
	return nil
}

// SetNote binds note and notifies note change observers
func (e *Editor) SetNote(note *items.Item, isTemplate bool) {
	e.mu.Lock()
	e.note = note
	e.isTemplate = isTemplate
	e.mu.Unlock()

	e.onNoteChange(note)
}

// Note returns a copy of the bound note, or nil before the first bind
func (e *Editor) Note() *items.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.note.Clone()
}

// IsTemplateNote reports whether the bound note is an unsaved placeholder
func (e *Editor) IsTemplateNote() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isTemplate
}

// ChangeText replaces the bound note's text. A placeholder note is saved
// first.
func (e *Editor) ChangeText(ctx context.Context, text string) error {
	return e.change(ctx, func(m *items.Mutator) { m.SetText(text) })
}

// ChangeTitle replaces the bound note's title. A placeholder note is saved
// first.
func (e *Editor) ChangeTitle(ctx context.Context, title string) error {
	return e.change(ctx, func(m *items.Mutator) { m.SetTitle(title) })
}

func (e *Editor) change(ctx context.Context, mutate func(*items.Mutator)) error {
	app, err := e.dataLayer()
	if err != nil {
		return err
	}
	note := e.Note()
	if note == nil {
		return ErrNoNote
	}

	if e.IsTemplateNote() {
		if _, err := app.InsertItem(ctx, note); err != nil {
			return fmt.Errorf("failed to save placeholder note: %w", err)
		}
	}
	if _, err := app.ChangeItem(ctx, note.UUID, mutate); err != nil {
		return fmt.Errorf("failed to change note: %w", err)
	}
	return nil
}

func (e *Editor) onNoteChange(note *items.Item) {
	if note == nil {
		return
	}
	e.noteChangeObservers.Notify(func(observer NoteChangeObserver) {
		observer(note.Clone())
	})
}

func (e *Editor) onNoteValueChange(note *items.Item, source items.PayloadSource) {
	e.noteValueChangeObservers.Notify(func(observer NoteValueChangeObserver) {
		observer(note.Clone(), source)
	})
}

// AddNoteChangeObserver registers an observer for the editor switching notes.
// Returns a function that unregisters it.
func (e *Editor) AddNoteChangeObserver(observer NoteChangeObserver) (remove func()) {
	token := e.noteChangeObservers.Add(observer)
	return func() {
		e.noteChangeObservers.Remove(token)
	}
}

// AddNoteValueChangeObserver registers an observer for changes to the bound
// note's value. Returns a function that unregisters it.
func (e *Editor) AddNoteValueChangeObserver(observer NoteValueChangeObserver) (remove func()) {
	token := e.noteValueChangeObservers.Add(observer)
	return func() {
		e.noteValueChangeObservers.Remove(token)
	}
}
