package tokenizer

// defaultStopwords covers the function words that would otherwise dominate
// every cloud. Deployments add their own via the stopwords file.
var defaultStopwords = []string{
	// English
	"the", "a", "an", "and", "or", "but", "if", "of", "at", "by", "for",
	"with", "about", "to", "from", "in", "on", "is", "are", "was", "were",
	"be", "been", "it", "its", "this", "that", "these", "those", "i", "you",
	"he", "she", "we", "they", "me", "my", "your", "his", "her", "our",
	"their", "not", "no", "yes", "do", "does", "did", "have", "has", "had",
	"what", "when", "where", "who", "how", "why", "can", "will", "just",
	"dont", "don't", "im", "i'm", "so", "too", "very", "up", "out", "all",
	// Chinese
	"的", "了", "是", "我", "你", "他", "她", "它", "们", "这", "那",
	"一个", "我们", "你们", "他们", "什么", "怎么", "为什么", "因为",
	"所以", "但是", "可以", "没有", "就是", "还是", "不是", "知道",
	"现在", "时候", "觉得", "自己", "一下", "不要", "这个", "那个",
	"哈哈", "哈哈哈", "嗯嗯", "啊啊",
}
