package agent

import (
	"encoding/json"
	"strings"

	"github.com/moxie-ai/agentgraph/tool"
)

// maxIterationResponse is the fixed reply returned when a turn exceeds the
// configured iteration bound without producing a plain-text answer.
const maxIterationResponse = "当前Agent迭代次数已超出限制，请重新尝试"

// agentSystemPromptTemplate builds the system prompt for models with
// native tool calling.
const agentSystemPromptTemplate = `你是一个高度定制的智能体应用，旨在为用户提供准确、专业的内容生成和问题解答，请严格遵守以下规则：

1.**预设任务执行**：你需要基于用户提供的预设提示(prompt)生成不同类型的内容，确保输出符合用户的预期和指引；
2.**工具调用和参数生成**：当任务需要时，你可以调用绑定的外部工具，并生成符合任务需求的调用参数；
3.**历史对话和长期记忆**：你可以参考历史对话记录和长期记忆，确保任务的连贯性；
4.**外部知识库检索**：如果用户的问题超出你的知识范围，可以调用知识库检索工具获取背景信息；
5.**高效性和简洁性**：保持生成内容的简洁高效，避免冗长的无关信息。

<预设提示>
{preset_prompt}
</预设提示>

<长期记忆>
{long_term_memory}
</长期记忆>`

// reactAgentSystemPromptTemplate builds the system prompt for text-only
// models: it embeds the available tool descriptions and the fenced-JSON
// reply convention that emulates tool calling.
const reactAgentSystemPromptTemplate = `你是一个高度定制的智能体应用，旨在为用户提供准确、专业的内容生成和问题解答，请严格遵守以下规则：

1.**预设任务执行**：你需要基于用户提供的预设提示(prompt)生成不同类型的内容，确保输出符合用户的预期和指引；
2.**工具调用和参数生成**：当任务需要时，如果需要调用工具，请直接输出一个markdown的json代码块，格式如下：

` + "```json\n{\"name\": \"工具名称\", \"args\": {\"参数名称\": \"参数值\"}}\n```" + `

不要输出任何其他内容，工具描述如下：

<工具描述>
{tool_descriptions}
</工具描述>

3.**历史对话和长期记忆**：你可以参考历史对话记录和长期记忆，确保任务的连贯性；
4.**高效性和简洁性**：保持生成内容的简洁高效，避免冗长的无关信息。

<预设提示>
{preset_prompt}
</预设提示>

<长期记忆>
{long_term_memory}
</长期记忆>`

// renderSystemPrompt fills the native tool-calling template.
func renderSystemPrompt(presetPrompt, longTermMemory string) string {
	out := strings.ReplaceAll(agentSystemPromptTemplate, "{preset_prompt}", presetPrompt)
	return strings.ReplaceAll(out, "{long_term_memory}", longTermMemory)
}

// renderReactSystemPrompt fills the text-emulation template with the tool
// description block.
func renderReactSystemPrompt(presetPrompt, longTermMemory string, tools []tool.Tool) string {
	out := strings.ReplaceAll(reactAgentSystemPromptTemplate, "{preset_prompt}", presetPrompt)
	out = strings.ReplaceAll(out, "{long_term_memory}", longTermMemory)
	return strings.ReplaceAll(out, "{tool_descriptions}", describeTools(tools))
}

// describeTools serializes every tool's name, description and argument
// schema into the prompt block text-only models read.
func describeTools(tools []tool.Tool) string {
	entries := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		entries = append(entries, map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"args":        t.Parameters(),
		})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(data)
}
