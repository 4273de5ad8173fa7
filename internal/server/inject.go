package server

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// reloadClient connects to /ws and reacts to dev server messages.
const reloadClient = `(function () {
  var protocol = window.location.protocol === 'https:' ? 'wss:' : 'ws:';
  var retry;
  function connect() {
    var ws = new WebSocket(protocol + '//' + window.location.host + '/ws');
    ws.onopen = function () { clearTimeout(retry); };
    ws.onmessage = function (event) {
      var message = JSON.parse(event.data);
      switch (message.type) {
        case 'full_reload':
          window.location.reload();
          break;
        case 'build_error':
          console.error('[swimport] ' + message.content);
          break;
      }
    };
    ws.onclose = function () { retry = setTimeout(connect, 1000); };
  }
  connect();
})();`

// reloadClientID marks the injected script so it is never added twice.
const reloadClientID = "swimport-reload-client"

// InjectReloadClient appends the reload client to the body of an HTML
// document. Documents that already carry it are returned unchanged.
func InjectReloadClient(document []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(document))
	if err != nil {
		return nil, err
	}

	var body *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Script {
				for _, attr := range n.Attr {
					if attr.Key == "id" && attr.Val == reloadClientID {
						return true
					}
				}
			}
			if n.DataAtom == atom.Body && body == nil {
				body = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	if walk(doc) {
		return document, nil
	}
	if body == nil {
		// html.Parse always synthesizes a body; keep the document as is if not.
		return document, nil
	}

	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: "id", Val: reloadClientID}},
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: reloadClient})
	body.AppendChild(script)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// defaultIndex renders a page loading every application script, used when
// the public directory has no index.html.
func defaultIndex(scripts []string) []byte {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	head := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	meta := &html.Node{Type: html.ElementNode, Data: "meta", DataAtom: atom.Meta,
		Attr: []html.Attribute{{Key: "charset", Val: "utf-8"}}}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

	head.AppendChild(meta)
	for _, src := range scripts {
		head.AppendChild(&html.Node{Type: html.ElementNode, Data: "script", DataAtom: atom.Script,
			Attr: []html.Attribute{{Key: "type", Val: "module"}, {Key: "src", Val: src}}})
	}
	root.AppendChild(head)
	root.AppendChild(body)
	doc.AppendChild(root)

	var buf bytes.Buffer
	_ = html.Render(&buf, doc)
	return buf.Bytes()
}
