package scanning

import (
	"fmt"
	"strings"
)

// PromptMode selects how the instructions are laid out in the chat request
type PromptMode string

const (
	// PromptSystemUser sends the extraction rules as a system message and
	// the image with a short reminder as a user message.
	PromptSystemUser PromptMode = "system-user"
	// PromptSingle sends everything in one user message.
	PromptSingle PromptMode = "single"
)

// ResponseFormat selects how strictly JSON output is enforced upstream
type ResponseFormat string

const (
	// FormatJSONObject asks the provider to only emit a JSON object
	FormatJSONObject ResponseFormat = "json_object"
	// FormatText leaves the output unconstrained; the parser digs the JSON out
	FormatText ResponseFormat = "text"
)

// ParsePromptMode validates a prompt mode name
func ParsePromptMode(s string) (PromptMode, error) {
	switch m := PromptMode(strings.ToLower(strings.TrimSpace(s))); m {
	case PromptSystemUser, PromptSingle:
		return m, nil
	}
	return "", fmt.Errorf("unknown prompt mode %q (valid: %s, %s)", s, PromptSystemUser, PromptSingle)
}

// ParseResponseFormat validates a response format name
func ParseResponseFormat(s string) (ResponseFormat, error) {
	switch f := ResponseFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSONObject, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("unknown response format %q (valid: %s, %s)", s, FormatJSONObject, FormatText)
}

const defaultSystemPrompt = "Extraies la listes des articles et leur prix unitaire depuis des scan de ticket de caisse. " +
	"Si tu vois deux fois le même article sur une même ligne avec un prix total et non un prix unitaire, je veux que tu les sépares en deux lignes. " +
	"Je veux que tu me renvoies un JSON avec une liste d'objets contenant le nom de l'article et son prix unitaire. " +
	"Le format du JSON : {'articles': [{'nomArticle': nom_article, 'prixUnitaire': prix_unitaire}]}. " +
	"Si l'image est floue, illisible ou que ce n'est pas un ticket de caisse, je veux que tu me renvoies l'objet JSON suivant : { 'error': 'cannot_read' }. " +
	"La réponse doit être un objet JSON et rien d'autre. Sans texte réalable, sans formatage, sans retour à la ligne, sans retour chariot de type '\\n' juste le JSON brut sans rien d'autre."

const defaultUserPrompt = "Extraies les information de ce scan de ticket de caisses et veille bien à respecter le format JSON demandé. " +
	"Si l'image est floue, illisible ou que ce n'est pas un ticket de caisse, renvoie l'objet JSON suivant : { 'error': 'cannot_read' }."

// Instructions is the prompt template shared by all providers
type Instructions struct {
	System string
	User   string
	Mode   PromptMode
	Format ResponseFormat
}

// DefaultInstructions returns the receipt extraction prompt with the given
// layout and output enforcement.
func DefaultInstructions(mode PromptMode, format ResponseFormat) Instructions {
	return Instructions{
		System: defaultSystemPrompt,
		User:   defaultUserPrompt,
		Mode:   mode,
		Format: format,
	}
}

// combined returns the system and user text as one block, used when the
// prompt is sent as a single message.
func (i Instructions) combined() string {
	if i.System == "" {
		return i.User
	}
	if i.User == "" {
		return i.System
	}
	return i.System + "\n\n" + i.User
}
