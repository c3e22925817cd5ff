package ycm

// FiletypeUnknown is reported for modes the daemon has no completer for.
const FiletypeUnknown = "unknown"

// modeFiletypes maps editor major modes to daemon filetype tags.
var modeFiletypes = map[string]string{
	"js-mode":         "javascript",
	"js2-mode":        "javascript",
	"javascript-mode": "javascript",
	"python-mode":     "python",
	"c++-mode":        "cpp",
	"cc-mode":         "cpp",
	"cpp-mode":        "cpp",
}

// FiletypesForMode maps an editor mode to the daemon's one-element
// filetype tag list. Total: unrecognized modes map to ["unknown"].
func FiletypesForMode(mode string) []string {
	if ft, ok := modeFiletypes[mode]; ok {
		return []string{ft}
	}
	return []string{FiletypeUnknown}
}
