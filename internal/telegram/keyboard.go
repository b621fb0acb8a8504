package telegram

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/config"
)

// LanguageCallbackPrefix prefixes callback data of the language picker.
const LanguageCallbackPrefix = "lang_"

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// ButtonRow creates a row of inline buttons.
func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// LanguageKeyboard lists the supported languages, two per row, marking the
// current one.
func LanguageKeyboard(languages []string, current string) *models.InlineKeyboardMarkup {
	var (
		rows [][]models.InlineKeyboardButton
		row  []models.InlineKeyboardButton
	)
	for _, lang := range languages {
		label := config.LanguageNames[lang]
		if label == "" {
			label = lang
		}
		if lang == current {
			label = "✅ " + label
		}
		row = append(row, InlineButton(label, LanguageCallbackPrefix+lang))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return InlineKeyboard(rows...)
}

// ParseLanguageCallback extracts the language code from picker callback data.
func ParseLanguageCallback(data string) (string, error) {
	lang, ok := strings.CutPrefix(data, LanguageCallbackPrefix)
	if !ok || lang == "" {
		return "", fmt.Errorf("invalid language callback %q", data)
	}
	return lang, nil
}
