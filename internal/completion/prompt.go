package completion

import (
	"fmt"
	"os"
	"strings"
)

// defaultPrompt is the drafting instruction used when no prompt file is
// configured. It asks for text-message register and explains the decision
// contract; the JSON schema enforces the shape regardless.
const defaultPrompt = `You draft replies on behalf of the account owner in their chat
conversations. Read the exchange and decide whether a reply from the owner is
warranted right now.

Guidelines:
- Write in the owner's voice: brief, direct, informal but professional,
  text-message style, separate ideas with new lines, no sign-offs, no emojis.
- Do not reply to the owner's own prior messages.
- If the conversation needs nothing from the owner, decline to respond and
  say why in the reason field.
- Set urgency to high only when someone is blocked or explicitly waiting on
  the owner; medium for direct questions; low otherwise.
- Confidence reflects how certain you are the draft is appropriate to send
  as-is, 0-100.`

// LoadPrompt returns the system prompt: the contents of path when set,
// the embedded default otherwise.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return defaultPrompt, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("completion: read prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(raw))
	if prompt == "" {
		return "", fmt.Errorf("completion: prompt file %s is empty", path)
	}
	return prompt, nil
}
