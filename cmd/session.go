package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/illarion/notelock/internal/appstate"
	"github.com/illarion/notelock/internal/crypto"
	"github.com/illarion/notelock/internal/editor"
	"github.com/illarion/notelock/internal/items"
	"github.com/illarion/notelock/internal/keys"
	"github.com/illarion/notelock/internal/prompt"
	"github.com/illarion/notelock/internal/storage"
)

const maxPasscodeAttempts = 3

var errLocked = errors.New("application is locked")

const sessionHelp = `Host signals:
  active | inactive | background    deliver a lifecycle signal
  host RAW                          deliver any other signal
Lock:
  lock | unlock | status
Notes:
  notes                             list notes
  open ID                           edit an existing note
  new [TITLE]                       start a new note
  new-in TAG [TITLE]                start a new note in a tag
  text TEXT | title TITLE           edit the open note
  save                              save a new note without editing it
  remote TEXT                       simulate a synced change to the open note
  close                             stop editing
  quit
`

// credentialStore is what a session needs from the credential manager
type credentialStore interface {
	appstate.Credentials
	VerifyPasscode(passcode []byte) error
}

// session drives the lock coordinator and an editor from line commands
type session struct {
	store  *storage.Store
	keys   credentialStore
	logger *zap.Logger
	out    io.Writer
	lines  *bufio.Reader
	prompt *prompt.Reader

	host        *lineHost
	coordinator *appstate.Coordinator
	editor      *editor.Editor
	lastSeen    *items.Item

	challenge    appstate.State
	hasChallenge bool

	notes       []*items.Item
	tags        []*items.Item
	stopStreams []func()
}

func newSessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Run an interactive lock lifecycle session",
		Long: `Run an interactive lock lifecycle session.

Commands and host lifecycle signals are read from stdin, one per line.
Type 'help' inside the session for the list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore()
			lines := bufio.NewReader(cmd.InOrStdin())
			s := newSession(store, a.keys, a.logger, lines, newPrompter(cmd, lines), cmd.OutOrStdout())
			return s.run(cmd.Context())
		},
	}
}

func newSession(store *storage.Store, creds credentialStore, logger *zap.Logger, lines *bufio.Reader, p *prompt.Reader, out io.Writer) *session {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("session")
	return &session{
		store:  store,
		keys:   creds,
		logger: logger,
		out:    out,
		lines:  lines,
		prompt: p,
		host:   newLineHost(logger),
	}
}

func (s *session) run(ctx context.Context) error {
	s.coordinator = appstate.New(s.keys,
		appstate.WithLogger(s.logger),
		appstate.WithHostLifecycle(s.host),
		appstate.WithStateObserver(s.onState),
	)
	defer s.close()

	s.stopStreams = append(s.stopStreams,
		s.store.StreamItems(items.ContentTypeNote, s.reloadNotes),
		s.store.StreamItems(items.ContentTypeTag, s.reloadNotes),
	)

	s.coordinator.ReceiveApplicationStartEvent()

	for {
		if err := s.authenticate(); err != nil {
			return err
		}

		fmt.Fprint(s.out, "> ")
		line, err := s.lines.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if s.exec(ctx, line) {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *session) close() {
	if s.editor != nil {
		s.editor.Deinit()
		s.editor = nil
	}
	for _, stop := range s.stopStreams {
		stop()
	}
	s.stopStreams = nil
	s.coordinator.Close()
}

// onState prints every transition. Launching and Resuming may need a
// challenge, which is shown before the next command is read.
func (s *session) onState(state appstate.State) {
	fmt.Fprintf(s.out, "state: %s\n", state)

	switch state {
	case appstate.Launching, appstate.Resuming:
		s.challenge = state
		s.hasChallenge = true
	}
}

// authenticate presents the pending challenge, if any. It returns an error
// only when input ends or the passcode is wrong too many times.
func (s *session) authenticate() error {
	if !s.hasChallenge {
		return nil
	}
	s.hasChallenge = false

	req := s.coordinator.GetAuthenticationPropsForAppState(s.challenge)
	if !req.Required() || s.coordinator.IsAuthenticationInProgress() {
		return nil
	}

	s.coordinator.SetAuthenticationInProgress(true)
	defer s.coordinator.SetAuthenticationInProgress(false)

	fmt.Fprintln(s.out, req.Title)
	if req.Passcode {
		if err := s.checkPasscode(); err != nil {
			return err
		}
	}
	if req.Fingerprint {
		fmt.Fprint(s.out, "Touch the fingerprint sensor and press Enter ")
		if _, err := s.lines.ReadString('\n'); err != nil {
			return fmt.Errorf("fingerprint: %w", err)
		}
	}

	req.OnAuthenticate()
	return nil
}

func (s *session) checkPasscode() error {
	for attempt := 1; ; attempt++ {
		passcode, err := s.prompt.Passcode("Passcode: ")
		if err != nil {
			return err
		}
		err = s.keys.VerifyPasscode(passcode)
		crypto.ClearBytes(passcode)
		if err == nil {
			return nil
		}
		if !errors.Is(err, keys.ErrWrongPasscode) || attempt == maxPasscodeAttempts {
			return err
		}
		printError(s.out, err)
	}
}

// exec runs one command line. Returns true when the session should end.
func (s *session) exec(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch name {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(s.out, sessionHelp)
	case "active", "inactive", "background":
		s.host.Signal(name)
	case "host":
		s.host.Signal(arg)
	case "lock":
		s.coordinator.LockApplication()
	case "unlock":
		s.unlock()
	case "status":
		s.printStatus()
	default:
		if s.coordinator.IsLocked() {
			err = errLocked
			break
		}
		err = s.execNote(ctx, name, arg)
	}

	if err != nil {
		printError(s.out, err)
	}
	return false
}

func (s *session) unlock() {
	if s.coordinator.IsUnlocked() {
		return
	}
	req := s.coordinator.GetAuthenticationPropsForAppState(appstate.Launching)
	if !req.Required() {
		s.coordinator.UnlockApplication()
		return
	}
	s.challenge = appstate.Launching
	s.hasChallenge = true
}

func (s *session) printStatus() {
	if s.coordinator.IsLocked() {
		fmt.Fprintln(s.out, "locked")
	} else {
		fmt.Fprintln(s.out, "unlocked")
	}
	if host := s.coordinator.MostRecentHostState(); host != "" {
		fmt.Fprintf(s.out, "host: %s\n", host)
	}
	if s.editor != nil {
		if note := s.editor.Note(); note != nil {
			draft := ""
			if s.editor.IsTemplateNote() {
				draft = " (unsaved)"
			}
			fmt.Fprintf(s.out, "editing: %s %s%s\n", note.UUID, displayTitle(note), draft)
		}
	}
}

func (s *session) execNote(ctx context.Context, name, arg string) error {
	switch name {
	case "notes":
		printNotes(s.out, s.notes, s.tags)
		return nil
	case "open":
		return s.bind(ctx, arg, "", "")
	case "new":
		return s.bind(ctx, "", arg, "")
	case "new-in":
		tag, title, _ := strings.Cut(arg, " ")
		return s.bind(ctx, "", strings.TrimSpace(title), tag)
	case "close":
		s.unbind()
		return nil
	case "text", "title", "save", "remote":
	default:
		return fmt.Errorf("unknown command %q, type 'help'", name)
	}

	if s.editor == nil {
		return fmt.Errorf("no note open, use 'open' or 'new'")
	}
	switch name {
	case "text":
		return s.editor.ChangeText(ctx, arg)
	case "title":
		return s.editor.ChangeTitle(ctx, arg)
	case "save":
		if !s.editor.IsTemplateNote() {
			return nil
		}
		_, err := s.editor.InsertTemplatedNote(ctx)
		return err
	case "remote":
		note := s.editor.Note()
		note.Content.Text = arg
		note.UpdatedAt = time.Now().UTC()
		return s.store.ApplyRemote(ctx, note)
	}
	return nil
}

// bind replaces the open editor with one bound to noteUUID, or to a new
// placeholder note when noteUUID is empty.
func (s *session) bind(ctx context.Context, noteUUID, title, tagUUID string) error {
	s.unbind()

	e := editor.New(s.store, s.logger)
	e.AddNoteChangeObserver(s.onNoteChange)
	e.AddNoteValueChangeObserver(s.onNoteValueChange)

	if err := e.Init(ctx, noteUUID, title, tagUUID); err != nil {
		e.Deinit()
		return err
	}
	s.editor = e
	return nil
}

func (s *session) unbind() {
	if s.editor != nil {
		s.editor.Deinit()
		s.editor = nil
	}
	s.lastSeen = nil
}

func (s *session) onNoteChange(note *items.Item) {
	fmt.Fprintf(s.out, "editing new note %s\n", note.UUID)
	s.lastSeen = note
}

func (s *session) onNoteValueChange(note *items.Item, source items.PayloadSource) {
	fmt.Fprintf(s.out, "[%s] %s\n", source, displayTitle(note))
	fmt.Fprint(s.out, items.DescribeChange(s.lastSeen, note))
	s.lastSeen = note
}

// reloadNotes refreshes the note list whenever notes or tags change
func (s *session) reloadNotes(_ []*items.Item, source items.PayloadSource) {
	notes, err := s.store.Items(items.ContentTypeNote)
	if err != nil {
		s.logger.Warn("failed to reload notes", zap.Error(err))
		return
	}
	tags, err := s.store.Items(items.ContentTypeTag)
	if err != nil {
		s.logger.Warn("failed to reload tags", zap.Error(err))
		return
	}
	s.notes, s.tags = notes, tags
	s.logger.Debug("note list reloaded",
		zap.Int("notes", len(notes)),
		zap.Int("tags", len(tags)),
		zap.Stringer("source", source))
}
