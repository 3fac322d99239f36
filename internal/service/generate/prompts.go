package generate

import "fmt"

const correctionTemplate = `
You are a professional medical editor.
Correct any mistakes in medical terms or phrasing in the following transcript, without changing its meaning:

Transcript:
"%s"

Only provide the corrected transcript.
`

const translationTemplate = `
You are a professional medical translator.
Translate the following text from %s to %s accurately:

Text:
"%s"

Only provide the translated text.
`

func correctionPrompt(text string) string {
	return fmt.Sprintf(correctionTemplate, text)
}

func translationPrompt(text, sourceLang, targetLang string) string {
	return fmt.Sprintf(translationTemplate, sourceLang, targetLang, text)
}
