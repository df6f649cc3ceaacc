package core

// prompts.go defines the system prompts and fixed fallback strings used by
// the chat, extraction and summarisation components. Keeping these in a
// separate file makes them easy to tweak without touching the rest of the
// code.

const (
	// SystemPrompt is the physician persona for patient chat. It instructs
	// the assistant to keep replies short, avoid definitive diagnoses, and
	// emit the end-of-consultation marker when it believes the consultation
	// is over.
	SystemPrompt = "You are a compassionate general practice physician.\n" +
		"Your replies must be short, clear, and focused — no more than 3–4 sentences.\n" +
		"Ask open-ended questions first, then clarifying questions.\n" +
		"Use empathetic, non-alarming language. Avoid jargon or explain it simply.\n" +
		"Do not give a definitive diagnosis — focus on understanding symptoms, severity, timing, and red flags.\n" +
		"When provided a triage_context, deliver it clearly and explain next steps.\n" +
		"Avoid unnecessary repetition or filler words.\n" +
		"If you believe the consultation is complete, end your response with the token <END_CONVO>."

	// ExtractionInstruction asks the backend to turn a flattened transcript
	// into the structured symptom record. Unknown fields must be omitted so
	// an absent field always means "not mentioned", never "null".
	ExtractionInstruction = "Read the following doctor-patient conversation and extract clinical details. " +
		"Respond with a single JSON object and nothing else. Recognized keys: " +
		"\"onset\" (string), \"duration\" (string), \"severity\" (string or number 0-10), " +
		"\"associated_symptoms\" (list of strings), \"red_flags\" (list of strings such as " +
		"chest pain, shortness of breath, severe bleeding, loss of consciousness, stroke signs). " +
		"Omit any key the conversation does not support. If nothing can be extracted, respond with {}."

	// SummaryInstruction produces the doctor-facing visit summary from the
	// same flattened transcript.
	SummaryInstruction = "Summarise the following doctor-patient conversation for the treating physician. " +
		"Cover the chief complaint, onset and duration, severity, relevant history mentioned, and any " +
		"red-flag symptoms. Use at most 120 words of plain prose."

	// FallbackReply is returned to the patient whenever reply generation
	// fails. It must never look like an error to the patient.
	FallbackReply = "I'm here to help with your health concerns. Can you tell me more about your symptoms?"

	// FallbackTriageReason accompanies the Routine fallback verdict when
	// evaluation itself fails.
	FallbackTriageReason = "No red flags found; symptoms appear non-urgent."

	// FallbackSummary is stored when summary generation fails.
	FallbackSummary = "No summary is available for this conversation yet."
)
