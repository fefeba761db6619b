package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// SelectFileWithFzf launches fzf over the editable images under startDir and
// returns the chosen path. It needs `find` and `fzf` on PATH.
//
// The preview pane uses the best renderer the terminal detection finds,
// chained with `||` so a missing tool falls back to chafa.
func SelectFileWithFzf(startDir string) (string, error) {
	const chafa = "chafa --fill=block --symbols=block -s 80x40 {} 2>/dev/null"
	var previewCmd string
	switch {
	case isKitty():
		// Clear the previous kitty image first so previews don't pile up.
		previewCmd = "printf \"\\x1b_Ga=d\\x1b\\\\\"; kitty +kitten icat --silent {} 2>/dev/null || " + chafa
	case isInlineImageCapable():
		previewCmd = "imgcat {} 2>/dev/null || " + chafa
	default:
		previewCmd = chafa
	}

	cmdStr := fmt.Sprintf(
		"find %s -type f \\( -iname '*.png' -o -iname '*.jpg' -o -iname '*.jpeg' -o -iname '*.bmp' \\) | fzf --height 100%% --border --prompt='Images> ' --ansi --preview=%q --preview-window='right:60%%'",
		strconv.Quote(startDir),
		previewCmd,
	)
	cmd := exec.Command("bash", "-lc", cmdStr)
	var out bytes.Buffer
	cmd.Stdout = &out
	err := cmd.Run()
	clearKittyImages()
	if err != nil {
		return "", fmt.Errorf("error running fzf for files: %w", err)
	}

	selection := strings.TrimSpace(out.String())
	if selection == "" {
		return "", fmt.Errorf("no file selected")
	}
	return selection, nil
}

// clearKittyImages emits the kitty graphics "delete all" sequence. Other
// terminals ignore it.
func clearKittyImages() {
	if isKitty() {
		fmt.Fprint(os.Stdout, "\x1b_Ga=d\x1b\\")
	}
}
