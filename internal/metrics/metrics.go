// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス記録のインターフェース。
// ワーカーやサービス層から利用する。
type Recorder interface {
	RecordFeedCheck(success bool)
	RecordEpisodesDiscovered(count int)
	RecordTranscription(outcome string)
	RecordNewsletterGeneration(outcome string)
	RecordDigestSent(episodeCount int)
	RecordDigestFailure()
}

// パイプライン結果ラベルの値。
const (
	OutcomeSuccess   = "success"
	OutcomeTransient = "transient"
	OutcomePermanent = "permanent"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	feedCheckSuccess   prometheus.Counter
	feedCheckFail      prometheus.Counter
	episodesDiscovered prometheus.Counter
	transcriptions     *prometheus.CounterVec
	newsletters        *prometheus.CounterVec
	digestsSent        prometheus.Counter
	digestEpisodes     prometheus.Counter
	digestFail         prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedCheckSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castletter_feed_check_success_total",
			Help: "フィードチェック成功の合計数",
		}),
		feedCheckFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castletter_feed_check_fail_total",
			Help: "フィードチェック失敗の合計数",
		}),
		episodesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castletter_episodes_discovered_total",
			Help: "フィードから発見され保存されたエピソードの合計数",
		}),
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castletter_transcriptions_total",
			Help: "文字起こし試行の結果別合計数",
		}, []string{"outcome"}),
		newsletters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castletter_newsletter_generations_total",
			Help: "ニュースレター生成試行の結果別合計数",
		}, []string{"outcome"}),
		digestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castletter_digests_sent_total",
			Help: "送信されたダイジェストメールの合計数",
		}),
		digestEpisodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castletter_digest_episodes_total",
			Help: "ダイジェストに含まれ配信されたエピソードの合計数",
		}),
		digestFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castletter_digest_fail_total",
			Help: "ダイジェスト送信失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.feedCheckSuccess,
		c.feedCheckFail,
		c.episodesDiscovered,
		c.transcriptions,
		c.newsletters,
		c.digestsSent,
		c.digestEpisodes,
		c.digestFail,
	)

	return c
}

// RecordFeedCheck はフィードチェックの成否を記録する。
func (c *Collector) RecordFeedCheck(success bool) {
	if success {
		c.feedCheckSuccess.Inc()
	} else {
		c.feedCheckFail.Inc()
	}
}

// RecordEpisodesDiscovered は保存されたエピソード数を記録する。
func (c *Collector) RecordEpisodesDiscovered(count int) {
	c.episodesDiscovered.Add(float64(count))
}

// RecordTranscription は文字起こし試行の結果を記録する。
func (c *Collector) RecordTranscription(outcome string) {
	c.transcriptions.WithLabelValues(outcome).Inc()
}

// RecordNewsletterGeneration はニュースレター生成試行の結果を記録する。
func (c *Collector) RecordNewsletterGeneration(outcome string) {
	c.newsletters.WithLabelValues(outcome).Inc()
}

// RecordDigestSent はダイジェスト送信成功と含まれたエピソード数を記録する。
func (c *Collector) RecordDigestSent(episodeCount int) {
	c.digestsSent.Inc()
	c.digestEpisodes.Add(float64(episodeCount))
}

// RecordDigestFailure はダイジェスト送信失敗を記録する。
func (c *Collector) RecordDigestFailure() {
	c.digestFail.Inc()
}

// Noop は何も記録しないRecorder。テストおよび未配線の構成で使用する。
type Noop struct{}

func (Noop) RecordFeedCheck(bool)              {}
func (Noop) RecordEpisodesDiscovered(int)      {}
func (Noop) RecordTranscription(string)        {}
func (Noop) RecordNewsletterGeneration(string) {}
func (Noop) RecordDigestSent(int)              {}
func (Noop) RecordDigestFailure()              {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Noop{}
)
