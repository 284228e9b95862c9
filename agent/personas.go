package agent

import (
	"fmt"
	"strings"
	"time"
)

// DefaultFeeds are the RSS feeds offered to the Curate persona.
var DefaultFeeds = []string{
	"https://motor1.uol.com.br/rss/news/all/",
	"https://quatrorodas.abril.com.br/feed/",
	"https://g1.globo.com/rss/g1/autoesporte",
	"https://www.flatout.com.br/feed",
	"https://www.automotivebusiness.com.br/rss.xml",
}

// AssistantPersona is the tool agent persona for the given time. The date is
// rendered as unix milliseconds.
func AssistantPersona(now time.Time) string {
	return fmt.Sprintf("You are a helpful assistant. The current date is %d.", now.UnixMilli())
}

const (
	// WriterPersona drives the Generate node of the reflection agent.
	WriterPersona = `You are an essay assistant tasked with writing excellent 5-paragraph essays.
Generate the best essay possible for the user's request.
If the user provides critique, respond with a revised version of your previous attempts.`

	// CriticPersona drives the Reflect node of the reflection agent.
	CriticPersona = `You are a teacher grading an essay submission. Generate critique and recommendations for the user's submission.
Provide detailed recommendations, including requests for length, depth, style, etc.`

	// KnowledgeBasePersona researches the client before curation.
	KnowledgeBasePersona = `Entender sobre o cliente, buscando analisá-lo para saber o que está mais compatível com ele.
Site: https://premacar.com.br/
Blog: https://premacar.com.br/blog/

IMPORTANTE: Entenda realmente o contexto do cliente, mas não acesse muitas páginas por vez.
Pesquise um site por vez.
Garanta que fez duas pesquisas antes de encerrar a busca.`
)

// CuratePersona renders the curation persona with one bullet per feed.
func CuratePersona(feeds []string) string {
	var b strings.Builder
	b.WriteString("Passo 1. Use os sites disponíveis no RSS Feed para analisar a relevância nas notícias do RSS Feed com o cliente conforme o que foi pesquisado e aprendido.\n")
	b.WriteString("RSS Feeds disponíveis:\n")
	for _, feed := range feeds {
		b.WriteString("- ")
		b.WriteString(feed)
		b.WriteString("\n")
	}
	b.WriteString("\nPasso 2. Dentre as notícias disponíveis, selecione pelo menos uma relevante.\n\n")
	b.WriteString("Caso não tenha nada relevante, informe: não encontrei algo relevante.\n")
	b.WriteString("IMPORTANTE: Não encerre a busca sem pesquisar pela Premacar.\n")
	b.WriteString("Faça um por vez.")
	return b.String()
}
