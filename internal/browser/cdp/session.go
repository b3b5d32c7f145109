// internal/browser/cdp/session.go
package cdp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/internal/browser/realm"
	"github.com/xkilldash9x/formbridge/internal/config"
)

// Session is one browser tab. It hands out the two views of the page: the
// isolated-world document used by the automation side and the main-world
// realm used by the page side.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	onClose   func()
	closeOnce sync.Once
}

func newSession(tabCtx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger, onClose func()) *Session {
	id := uuid.New().String()
	return &Session{
		id:      id,
		ctx:     tabCtx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  logger.Named("session").With(zap.String("session_id", id)),
		onClose: onClose,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// initialize creates the tab. The first Run on a tab context owns the target,
// so it runs on the tab context and ctx only aborts it.
func (s *Session) initialize(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	if err := chromedp.Run(s.ctx, runtime.Enable(), page.Enable()); err != nil {
		return fmt.Errorf("failed to create tab: %w", err)
	}
	return nil
}

// RunActions runs actions on the tab, bounded by ctx.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	s.logger.Info("Navigating.", zap.String("url", url))
	if err := s.RunActions(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// SetContent replaces the top frame's document with markup.
func (s *Session) SetContent(ctx context.Context, markup string) error {
	err := s.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		tree, err := page.GetFrameTree().Do(c)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, markup).Do(c)
	}))
	if err != nil {
		return fmt.Errorf("failed to set document content: %w", err)
	}
	return nil
}

// Document creates a fresh isolated world on the current document and
// returns the automation view over it. Navigating invalidates it.
func (s *Session) Document(ctx context.Context) (*IsolatedDocument, error) {
	var contextID runtime.ExecutionContextID
	err := s.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		tree, err := page.GetFrameTree().Do(c)
		if err != nil {
			return err
		}
		contextID, err = page.CreateIsolatedWorld(tree.Frame.ID).
			WithWorldName(s.cfg.IsolatedWorld).
			Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create isolated world: %w", err)
	}
	return &IsolatedDocument{session: s, contextID: contextID, logger: s.logger.Named("isolated_document")}, nil
}

// Realm returns the page-side view of the tab's main world.
func (s *Session) Realm() *MainWorld {
	return newMainWorld(s)
}

// Close closes the tab. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("Session closed.")
	})
}

// evaluate runs expr in the given execution context, the main world when
// contextID is 0, and decodes its JSON value into out.
func (s *Session) evaluate(ctx context.Context, contextID runtime.ExecutionContextID, expr string, out any) error {
	return s.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		p := runtime.Evaluate(expr).WithReturnByValue(true).WithAwaitPromise(true)
		if contextID != 0 {
			p = p.WithContextID(contextID)
		}
		res, exc, err := p.Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError(exc)
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	}))
}

// invocation renders a call of the function literal fn with JSON arguments.
func invocation(fn string, args ...any) (string, error) {
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", i, err)
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf("(%s)(%s)", fn, strings.Join(encoded, ", ")), nil
}

// exceptionError turns exception details into the message the script threw.
func exceptionError(exc *runtime.ExceptionDetails) error {
	msg := exc.Text
	if ex := exc.Exception; ex != nil {
		switch {
		case ex.Description != "":
			msg = ex.Description
			if i := strings.IndexByte(msg, '\n'); i >= 0 {
				msg = msg[:i]
			}
			if ex.ClassName != "" {
				msg = strings.TrimPrefix(msg, ex.ClassName+": ")
			}
		case len(ex.Value) > 0:
			var v any
			if err := json.Unmarshal([]byte(ex.Value), &v); err == nil {
				msg = fmt.Sprint(v)
			}
		}
	}
	return &realm.ThrowError{Message: msg}
}
