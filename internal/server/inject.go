package server

import (
	"bytes"
)

// Endpoints served alongside the site.
const (
	socketPath = "/__sitepipe/ws"
	scriptPath = "/__sitepipe/livereload.js"
	errorsPath = "/__sitepipe/errors"
)

var scriptTag = []byte(`<script src="` + scriptPath + `"></script>`)

// injectScript inserts the live-reload script before the last </body>, or
// appends it when the document has none.
func injectScript(doc []byte) []byte {
	if bytes.Contains(doc, scriptTag) {
		return doc
	}
	i := bytes.LastIndex(bytes.ToLower(doc), []byte("</body>"))
	if i < 0 {
		out := make([]byte, 0, len(doc)+len(scriptTag)+1)
		out = append(out, doc...)
		out = append(out, '\n')
		return append(out, scriptTag...)
	}
	out := make([]byte, 0, len(doc)+len(scriptTag))
	out = append(out, doc[:i]...)
	out = append(out, scriptTag...)
	return append(out, doc[i:]...)
}

const clientScript = `(function () {
  var overlay;

  function showErrors(errors) {
    if (!errors || errors.length === 0) {
      if (overlay) { overlay.remove(); overlay = null; }
      return;
    }
    if (!overlay) {
      overlay = document.createElement('pre');
      overlay.style.cssText = 'position:fixed;left:0;right:0;bottom:0;max-height:50%;overflow:auto;' +
        'margin:0;padding:12px;background:#300;color:#fcc;font:12px monospace;z-index:2147483647';
      overlay.onclick = function () { overlay.remove(); overlay = null; };
      document.body.appendChild(overlay);
    }
    overlay.textContent = errors.join('\n');
  }

  function refreshStyles() {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var href = links[i].getAttribute('href').replace(/[?&]_sitepipe=\d+/, '');
      links[i].setAttribute('href', href + (href.indexOf('?') < 0 ? '?' : '&') + '_sitepipe=' + Date.now());
    }
  }

  function connect() {
    var protocol = window.location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(protocol + '//' + window.location.host + '` + socketPath + `');

    ws.onmessage = function (event) {
      var message = JSON.parse(event.data);
      switch (message.type) {
        case 'reload':
          window.location.reload();
          break;
        case 'css':
          refreshStyles();
          showErrors(message.errors);
          break;
      }
    };

    ws.onclose = function () {
      setTimeout(connect, 2000);
    };
  }

  fetch('` + errorsPath + `')
    .then(function (response) { return response.json(); })
    .then(showErrors)
    .catch(function () {});

  connect();
})();
`
