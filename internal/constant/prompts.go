package constant

// Prompt templates for the summarization pipeline. Placeholders are replaced
// verbatim by the AI service before the call goes out.

const SystemPrompt = `You are an expert resume writer. You turn raw Jira work items into concise, ` +
	`impact-focused resume achievement bullet points. Use strong action verbs, quantify impact ` +
	`where the data allows it, and never invent facts that are not present in the input. ` +
	`Respond with one achievement per line and no surrounding commentary.`

const ChunkProcessingPrompt = `Below is a set of Jira work items. Convert them into resume achievement ` +
	`bullet points. Group closely related items into a single achievement where it makes the result ` +
	`stronger. Output one achievement per line.
{{USER_PROMPT}}
Work items:

{{JIRA_DATA}}`

const UserPromptTemplate = `Additional instructions from the user (follow them where they do not ` +
	`conflict with the rules above): {{USER_PROMPT}}`

const DeduplicationPrompt = `The following achievement bullet points were produced from separate chunks ` +
	`of the same dataset and may overlap. Merge duplicates and near-duplicates into single, stronger ` +
	`statements, keep everything else, and output one achievement per line:

{{BULLETPOINTS}}`

const ReprocessPrompt = `Rework the following resume achievements according to the instruction below. ` +
	`Output one achievement per line and nothing else.

Instruction: {{ADDITIONAL_PROMPT}}

Achievements:

{{ACHIEVEMENTS}}`

// ConnectivityProbe is the minimal round trip used by the AI status check.
const (
	ConnectivityProbe         = "Say 'AI service is working' in exactly those words."
	ConnectivityProbeExpected = "AI service is working"
)
