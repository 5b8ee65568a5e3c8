// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package editor

import (
	"encoding/json"
)

// Script results understood by Surface.
const (
	resultReady       = "ready"
	resultSuccess     = "success"
	resultUnavailable = "__citeagent_unavailable__"

	// resultScriptError prefixes the message of an exception thrown inside
	// a script.
	resultScriptError = "__citeagent_error__: "
)

// locate finds the CodeMirror 6 view or, failing that, the ACE editor.
// Scripts are single statements without line comments so the Safari
// channel can flatten them.
const locate = `
var cmView = null;
var content = document.querySelector('.cm-content');
if (content && content.cmView && content.cmView.view) { cmView = content.cmView.view; }
if (!cmView) {
  var host = window.editor || document.querySelector('.cm-editor');
  if (host) {
    var holder = host.CodeMirror || host.cmView || host.cm;
    if (holder && holder.view) { cmView = holder.view; }
  }
}
var aceEditor = null;
if (!cmView) {
  if (window.aceEditor) { aceEditor = window.aceEditor; }
  else if (typeof ace !== 'undefined') { try { aceEditor = ace.edit('editor'); } catch (e) {} }
}
`

func wrap(body string) string {
	return "(function() { try {" + locate + body + "} catch (e) { return '" + resultScriptError + "' + e.message; } })();"
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// ReadyScript returns "ready" once an editor view exists.
func ReadyScript() string {
	return wrap(`
if ((cmView && cmView.state && cmView.state.doc) || aceEditor) { return '` + resultReady + `'; }
return 'not ready';
`)
}

// GetContentScript returns the whole document.
func GetContentScript() string {
	return wrap(`
if (cmView) { return cmView.state.doc.toString(); }
if (aceEditor && aceEditor.getValue) { return aceEditor.getValue(); }
return '` + resultUnavailable + `';
`)
}

// SetContentScript replaces the whole document with the value of the
// JavaScript expression expr.
func SetContentScript(expr string) string {
	return wrap(`
var text = ` + expr + `;
if (typeof text !== 'string') { return 'no_content'; }
if (cmView && cmView.dispatch) {
  cmView.dispatch(cmView.state.update({changes: {from: 0, to: cmView.state.doc.length, insert: text}}));
  return '` + resultSuccess + `';
}
if (aceEditor && aceEditor.setValue) { aceEditor.setValue(text, -1); return '` + resultSuccess + `'; }
return 'no_editor';
`)
}

// GetSelectionScript returns the selected text, or the unavailable marker
// when nothing is selected.
func GetSelectionScript() string {
	return wrap(`
if (cmView) {
  var sel = cmView.state.selection.main;
  if (sel.from !== sel.to) { return cmView.state.doc.sliceString(sel.from, sel.to); }
  return '` + resultUnavailable + `';
}
if (aceEditor && aceEditor.getSelectedText) {
  var selected = aceEditor.getSelectedText();
  if (selected) { return selected; }
}
return '` + resultUnavailable + `';
`)
}

// ReplaceSelectionScript replaces the current selection with text.
func ReplaceSelectionScript(text string) string {
	return wrap(`
var text = ` + jsString(text) + `;
if (cmView && cmView.dispatch) {
  var sel = cmView.state.selection.main;
  if (sel.from === sel.to) { return 'no selection'; }
  cmView.dispatch(cmView.state.update({changes: {from: sel.from, to: sel.to, insert: text}}));
  return '` + resultSuccess + `';
}
if (aceEditor && aceEditor.session && aceEditor.session.replace) {
  aceEditor.session.replace(aceEditor.selection.getRange(), text);
  return '` + resultSuccess + `';
}
return 'no_editor';
`)
}

// SelectBufferScript clicks the file-tree entry named name.
func SelectBufferScript(name string) string {
	return `(function() {
var name = ` + jsString(name) + `;
var selectors = ['.entity-name', '.file-tree-item-name', '[role="treeitem"]'];
for (var s = 0; s < selectors.length; s++) {
  var items = document.querySelectorAll(selectors[s]);
  for (var i = 0; i < items.length; i++) {
    var text = (items[i].textContent || '').trim();
    if (text === name) { items[i].click(); return '` + resultSuccess + `'; }
  }
}
return 'failed';
})();`
}
