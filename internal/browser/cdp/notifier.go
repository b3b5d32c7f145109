// internal/browser/cdp/notifier.go
package cdp

import (
	"context"
	"time"

	"github.com/xkilldash9x/formbridge/api/schemas"
)

// ToastDuration is how long a page notification stays up.
const ToastDuration = 3 * time.Second

const toastScript = `(function (message, background, ms) {
  if (!document.body) return;
  var toast = document.createElement('div');
  toast.setAttribute('data-formbridge-toast', '');
  toast.style.cssText = 'position:fixed;top:20px;right:20px;padding:12px 16px;border-radius:8px;' +
    'color:white;font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;font-size:14px;' +
    'z-index:2147483647;max-width:300px;box-shadow:0 4px 12px rgba(0,0,0,0.3);background:' + background + ';';
  toast.textContent = message;
  document.body.appendChild(toast);
  setTimeout(function () { if (toast.parentNode) toast.parentNode.removeChild(toast); }, ms);
})`

var toastColors = map[schemas.Severity]string{
	schemas.SeveritySuccess: "#4caf50",
	schemas.SeverityError:   "#f44336",
	schemas.SeverityInfo:    "#2196f3",
}

// PageNotifier shows notifications as a toast inside the tab. It renders from
// the isolated world so page scripts cannot intercept it.
type PageNotifier struct {
	doc *IsolatedDocument
}

// NewPageNotifier creates a notifier drawing into doc's page.
func NewPageNotifier(doc *IsolatedDocument) *PageNotifier {
	return &PageNotifier{doc: doc}
}

func (n *PageNotifier) Notify(ctx context.Context, message string, severity schemas.Severity) error {
	color, ok := toastColors[severity]
	if !ok {
		color = toastColors[schemas.SeverityInfo]
	}
	expr, err := invocation(toastScript, message, color, ToastDuration.Milliseconds())
	if err != nil {
		return err
	}
	return n.doc.session.evaluate(ctx, n.doc.contextID, expr, nil)
}
