package provider

import "strings"

// Theme is one broad conversation topic recognized by the offline paths:
// the demo responder matches themes to pick a canned paragraph, and the
// interest evaluator's degraded mode uses the same keyword sets for its
// deterministic overlap scoring. Sharing one table keeps the two paths
// consistent — a character that sounds interested offline will also have
// something to say offline.
type Theme struct {
	// Name identifies the theme ("technology", "psychology", ...).
	Name string

	// Keywords are direct markers of the theme, matched case-insensitively
	// as substrings. Both Chinese and English forms are listed because user
	// messages mix scripts freely.
	Keywords []string

	// Related are thematically adjacent markers: a hit counts as weaker
	// interest than a direct keyword hit.
	Related []string

	// Canned is the offline reply paragraph for the theme.
	Canned string
}

// Matches reports whether text contains any direct keyword of the theme.
func (t Theme) Matches(text string) bool {
	return containsAny(text, t.Keywords)
}

// MatchesRelated reports whether text contains any adjacent marker.
func (t Theme) MatchesRelated(text string) bool {
	return containsAny(text, t.Related)
}

func containsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Themes returns the fixed theme table. The slice is freshly allocated so
// callers cannot mutate the package table.
func Themes() []Theme {
	return []Theme{
		{
			Name:     "technology",
			Keywords: []string{"ai", "人工智能", "科技", "技术", "编程", "互联网", "机器学习", "technology", "software"},
			Related:  []string{"未来", "创新", "数据", "算法", "机器人", "数字化", "future", "innovation"},
			Canned: "说到科技，我一直觉得技术本身是中性的，关键在于我们怎么使用它。" +
				"人工智能这几年的发展速度确实惊人，但真正值得关注的是它如何融入普通人的日常生活，" +
				"而不只是实验室里的指标。你觉得哪个方向的落地最有意思？",
		},
		{
			Name:     "psychology",
			Keywords: []string{"心理", "情绪", "认知", "性格", "psychology", "emotion"},
			Related:  []string{"行为", "习惯", "动机", "压力", "关系", "成长"},
			Canned: "从心理学的角度看，人的很多行为其实是习惯和情绪在驱动，而不是理性计算。" +
				"理解自己的动机往往比改变行为本身更重要——先看清楚为什么，怎么做反而会自然浮现出来。",
		},
		{
			Name:     "entrepreneurship",
			Keywords: []string{"创业", "商业", "市场", "产品", "startup", "business"},
			Related:  []string{"投资", "增长", "用户", "团队", "融资", "商业模式"},
			Canned: "创业最难的不是想法，而是把想法磨成用户真正愿意付费的产品。" +
				"市场会毫不留情地检验每一个假设，所以小步快跑、尽早拿到真实反馈，比闭门打磨完美方案重要得多。",
		},
		{
			Name:     "art",
			Keywords: []string{"艺术", "绘画", "音乐", "设计", "art", "美学"},
			Related:  []string{"创作", "灵感", "色彩", "文化", "表达", "审美"},
			Canned: "艺术有意思的地方在于它不解决问题，它提出问题。" +
				"一幅画、一段旋律能把说不清楚的感受直接传递过去，这种表达方式是任何逻辑论证都替代不了的。",
		},
	}
}

// genericCanned is the reply used when no theme matches.
const genericCanned = "这个话题很有意思，我得想一想。每个人的视角不一样，" +
	"我更愿意先听听你是怎么看的，然后再说说我的想法。"
