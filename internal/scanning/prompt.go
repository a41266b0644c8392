package scanning

// transcribePrompt is the shared prompt used by all LLM providers. The models
// only transcribe; name and phone pairing happens in the extract package.
const transcribePrompt = `You are reading a photo of a business card, flyer, sign or handwritten note. Transcribe ALL visible text exactly as written.

Rules:
- Keep the reading order: top to bottom, left to right
- Each visually separate block of text (a name, a title, an address, a phone number) is one entry
- Keep line breaks inside a block as "\n"
- Copy phone numbers character for character, including +, spaces, dashes, dots and parentheses
- Do not correct spelling, translate, summarize or add text that is not in the image

Return ONLY valid JSON in this exact format:
{
  "blocks": ["first block", "second block"]
}

If there is no readable text, return {"blocks": []}.
Do not include any text before or after the JSON.
Do not use markdown code blocks`
