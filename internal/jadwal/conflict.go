package jadwal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
)

// FallbackMessage is shown when the backend gave nothing usable.
const FallbackMessage = "Gagal menyimpan jadwal."

// RenderConflict formats one backend conflict for display.
func RenderConflict(c models.ScheduleConflict) string {
	span := models.ShortTime(c.Start) + "-" + models.ShortTime(c.End)
	if c.Global() {
		return fmt.Sprintf("Konflik: %s (%s) adalah Non-KBM (global).", span, c.Category)
	}
	return fmt.Sprintf("Konflik: %s (%s) sudah terisi untuk %s.", span, c.Category, strings.TrimSpace(c.Class))
}

// Messages extracts display lines from a submit failure: conflicts first, then
// the backend's errors, detail and msg fields, then the fallback.
func Messages(err error) []string {
	if err == nil {
		return nil
	}

	var submitErr *models.SubmitError
	if errors.As(err, &submitErr) {
		if submitErr.HasConflicts() {
			out := make([]string, 0, len(submitErr.Conflicts))
			for _, c := range submitErr.Conflicts {
				out = append(out, RenderConflict(c))
			}
			return out
		}
		if lines := nonBlank(submitErr.Errors); len(lines) > 0 {
			return lines
		}
		if lines := nonBlank(submitErr.Detail); len(lines) > 0 {
			return lines
		}
		if msg := strings.TrimSpace(submitErr.Message); msg != "" {
			return []string{msg}
		}
		return []string{FallbackMessage}
	}

	var rejection *Rejection
	if errors.As(err, &rejection) {
		return []string{rejection.Error()}
	}

	var appErr *appErrors.Error
	if errors.As(err, &appErr) && strings.TrimSpace(appErr.Message) != "" {
		return []string{appErr.Message}
	}
	return []string{FallbackMessage}
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
