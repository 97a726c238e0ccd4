package refine

import (
	"fmt"
	"strings"
)

// InputPlaceholder is replaced with the raw transcription.
const InputPlaceholder = "{input}"

type Preset string

const (
	PresetDefault Preset = "default"
	PresetMeeting Preset = "meeting"
	PresetMemo    Preset = "memo"
	PresetChat    Preset = "chat"
	PresetCustom  Preset = "custom"
)

var presetOrder = []Preset{PresetDefault, PresetMeeting, PresetMemo, PresetChat, PresetCustom}

var presetTemplates = map[Preset]string{
	PresetDefault: `Rewrite the following speech recognition output as natural, well-formed text.
Fix typos and misrecognized words, add punctuation and correct the grammar.
Output only the rewritten text without any explanation.

Input: {input}

Output:`,
	PresetMeeting: `Rewrite the following speech recognition output as meeting minutes.
- Organize what was said as bullet points
- Make key points and decisions explicit
- Fix typos and misrecognized words
Output only the rewritten text.

Input: {input}

Output:`,
	PresetMemo: `Rewrite the following speech recognition output as a short memo.
- Keep only the essentials
- Drop filler words
- Fix typos and misrecognized words
Output only the rewritten text.

Input: {input}

Output:`,
	PresetChat: `Rewrite the following speech recognition output as a casual chat message.
- Keep the conversational tone
- Add light punctuation and emoji where it fits
- Only fix typos and misrecognized words
Output only the rewritten text.

Input: {input}

Output:`,
	PresetCustom: "",
}

func ParsePreset(value string) (Preset, error) {
	preset := Preset(strings.ToLower(strings.TrimSpace(value)))
	if preset == "" {
		return PresetDefault, nil
	}
	if _, ok := presetTemplates[preset]; !ok {
		names := make([]string, 0, len(presetOrder))
		for _, p := range presetOrder {
			names = append(names, string(p))
		}
		return "", fmt.Errorf("unknown preset %q (known presets: %s)", value, strings.Join(names, ", "))
	}
	return preset, nil
}

// Presets returns every preset in display order.
func Presets() []Preset {
	return append([]Preset(nil), presetOrder...)
}

// Template returns the built-in template of p; custom has none.
func (p Preset) Template() string {
	return presetTemplates[p]
}

// PromptTemplate resolves the template used for refinement. A custom preset
// with an empty prompt falls back to the default template.
func PromptTemplate(preset Preset, customPrompt string) string {
	if preset == PresetCustom {
		if strings.TrimSpace(customPrompt) == "" {
			return PresetDefault.Template()
		}
		return customPrompt
	}
	if template, ok := presetTemplates[preset]; ok {
		return template
	}
	return PresetDefault.Template()
}

func Render(template, input string) string {
	return strings.ReplaceAll(template, InputPlaceholder, input)
}
