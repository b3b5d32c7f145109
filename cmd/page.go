// File: cmd/page.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/internal/bridge"
	"github.com/xkilldash9x/formbridge/internal/browser/cdp"
	"github.com/xkilldash9x/formbridge/internal/browser/dom"
	"github.com/xkilldash9x/formbridge/internal/browser/jsbind"
	"github.com/xkilldash9x/formbridge/internal/browser/realm"
	"github.com/xkilldash9x/formbridge/internal/formfill"
)

const shutdownTimeout = 10 * time.Second

// pageFlags selects the page a command works on.
type pageFlags struct {
	url      string
	htmlFile string
	browser  bool
	origin   string
}

func (f *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "URL to open in a browser tab")
	cmd.Flags().StringVar(&f.htmlFile, "html", "", "HTML file to load")
	cmd.Flags().BoolVar(&f.browser, "browser", false, "load --html in a browser tab instead of the in-process page")
	cmd.Flags().StringVar(&f.origin, "origin", "null", "origin reported to the in-process page")
	cmd.MarkFlagsMutuallyExclusive("url", "html")
	cmd.MarkFlagsOneRequired("url", "html")
}

// pageTarget is an opened page: both views of it, and its message transport
// when one was requested.
type pageTarget struct {
	doc       dom.Document
	realm     realm.Realm
	transport bridge.Transport
	notifier  formfill.Notifier
	close     func()
}

// openPage opens the page named by f. Without a browser the page runs
// in-process: inline scripts execute in an embedded runtime.
func (a *app) openPage(ctx context.Context, f pageFlags, withTransport bool) (*pageTarget, error) {
	if f.url == "" && !f.browser {
		return a.openOffline(f)
	}
	return a.openBrowser(ctx, f, withTransport)
}

func (a *app) openOffline(f pageFlags) (*pageTarget, error) {
	file, err := os.Open(f.htmlFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer file.Close()

	page, err := jsbind.NewPage(file, a.logger, jsbind.WithOrigin(f.origin))
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	return &pageTarget{
		doc:       page.Document(),
		realm:     page,
		transport: page,
		close:     page.Close,
	}, nil
}

func (a *app) openBrowser(ctx context.Context, f pageFlags, withTransport bool) (t *pageTarget, err error) {
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}
	defer func() {
		if err != nil {
			closeAll()
		}
	}()

	manager, err := cdp.NewManager(ctx, a.cfg.Browser(), a.logger)
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Browser shutdown failed.", zap.Error(err))
		}
	})

	session, err := manager.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, session.Close)

	switch {
	case f.url != "":
		err = session.Navigate(ctx, f.url)
	default:
		var markup []byte
		if markup, err = os.ReadFile(f.htmlFile); err == nil {
			err = session.SetContent(ctx, string(markup))
		}
	}
	if err != nil {
		return nil, err
	}

	doc, err := session.Document(ctx)
	if err != nil {
		return nil, err
	}
	t = &pageTarget{doc: doc, realm: session.Realm()}
	if a.cfg.FormFill().NotifyPage {
		t.notifier = cdp.NewPageNotifier(doc)
	}
	if withTransport {
		transport, err := cdp.NewTransport(ctx, session, a.cfg.Bridge(), a.logger)
		if err != nil {
			return nil, err
		}
		cleanup = append(cleanup, transport.Close)
		t.transport = transport
	}
	t.close = closeAll
	return t, nil
}

// notifier returns the summary sink for t: the log, plus the page when the
// page can show notifications.
func (a *app) notifier(t *pageTarget) formfill.Notifier {
	log := formfill.NewLogNotifier(a.logger)
	if t.notifier == nil {
		return log
	}
	return formfill.MultiNotifier{log, t.notifier}
}
