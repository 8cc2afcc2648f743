package engine

import (
	"fmt"
	"strings"

	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/textutil"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/character"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/memory"
)

// Message is a single visible chat turn handed to the engine by the caller.
// Slices of Message are ordered newest-first, matching how chat frontends
// hold their history.
type Message struct {
	// Sender is the display name of whoever wrote the message.
	Sender string

	// Content is the message text.
	Content string
}

// interestSystemPrompt instructs the model to return a strict JSON object.
// Two printf verbs are substituted at call time: the character name and its
// persona instructions.
const interestSystemPrompt = `你是%s。你的人设：%s

你要判断自己对一个聊天话题有多感兴趣。只输出一个 JSON 对象，不要输出任何其他文字、
不要使用 markdown 代码块。

JSON schema:
{
  "score": 0.0-1.0 之间的兴趣分数,
  "reason": "一句话说明原因",
  "shouldParticipate": true 或 false
}`

// buildInterestPrompt composes the evaluation call: the system message
// frames the character, the user message carries its trait scores plus the
// topic and context under judgment.
func buildInterestPrompt(ch character.Profile, traits memory.Traits, topic, context string) (system, prompt string) {
	system = fmt.Sprintf(interestSystemPrompt, ch.Name, ch.Persona)

	var b strings.Builder
	fmt.Fprintf(&b, "你的性格特征（0-1）：开放性 %.2f，尽责性 %.2f，外向性 %.2f，宜人性 %.2f，神经质 %.2f\n\n",
		traits.Openness, traits.Conscientiousness, traits.Extraversion, traits.Agreeableness, traits.Neuroticism)
	fmt.Fprintf(&b, "当前话题：%s\n", topic)
	if context != "" {
		fmt.Fprintf(&b, "上下文：%s\n", context)
	}
	b.WriteString("\n请评估你对这个话题的兴趣。")
	return system, b.String()
}

// buildGenerationPrompt composes the single reply-generation prompt. The
// ordering is deliberate: identity first, retrieved memory next, then the
// visible conversation in chronological order with per-message topic
// annotations, the sampled thread cue, and finally the current turn.
//
// recent is newest-first as supplied by the caller and is reversed here.
// cue is one message sampled from the last five turns; referencing it biases
// replies toward occasionally picking up older, non-adjacent threads instead
// of always chasing the latest message.
func buildGenerationPrompt(
	bank *memory.Bank,
	memories []memory.KeyMemory,
	history []memory.HistoryEntry,
	recent []Message,
	cue *Message,
	topic, context, message string,
) string {
	var b strings.Builder

	fmt.Fprintf(&b, "【自我认知】%s\n\n", bank.PersonalitySummary)

	if len(memories) > 0 {
		b.WriteString("【相关记忆】\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- （%s）%s\n", m.Topic, m.Content)
		}
		b.WriteString("\n")
	}

	if len(recent) > 0 {
		b.WriteString("【对话记录】\n")
		for i := len(recent) - 1; i >= 0; i-- {
			msg := recent[i]
			fmt.Fprintf(&b, "%s: %s（话题：%s）\n", msg.Sender, msg.Content, textutil.ExtractTopic(msg.Content))
		}
		b.WriteString("\n")
	}

	if cue != nil {
		fmt.Fprintf(&b, "【回顾】对话中%s曾提到：%s\n如果自然的话，可以呼应这条线索。\n\n", cue.Sender, cue.Content)
	}

	if len(history) > 0 {
		b.WriteString("【你最近的发言】\n")
		for _, h := range history {
			fmt.Fprintf(&b, "- 关于「%s」：%s\n", h.Topic, h.ViewExpressed)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "【当前话题】%s\n", topic)
	if context != "" {
		fmt.Fprintf(&b, "【场景】%s\n", context)
	}
	fmt.Fprintf(&b, "【用户消息】%s\n\n", message)
	b.WriteString("请以这个角色的身份自然地回应，不要重复你最近说过的话。")

	return b.String()
}

// generationSystemPrompt frames the reply call with the persona instructions.
func generationSystemPrompt(ch character.Profile) string {
	return fmt.Sprintf("你是%s。你的人设：%s\n始终保持角色，以第一人称发言。", ch.Name, ch.Persona)
}
