package schedule

import (
	"math/rand/v2"
	"time"
)

var (
	morningGreetings = []string{
		"おはようございます！今日も素晴らしい一日になりますように。",
		"Good morning everyone! How did you sleep?",
		"朝ですね。今日の予定は何ですか？",
		"Morning has broken! What's on everyone's mind today?",
		"新しい一日の始まりですね。今日はどんな日になるでしょうか？",
	}
	afternoonGreetings = []string{
		"こんにちは！お昼ごはんは何を食べましたか？",
		"Afternoon all! How's the day treating you so far?",
		"今日の午後はどうですか？何か面白いことがありましたか？",
		"Taking an afternoon break? What's everyone up to?",
		"お昼の時間ですね。今日の調子はどうですか？",
	}
	eveningGreetings = []string{
		"こんばんは！今日はどんな一日でしたか？",
		"Evening everyone! How was your day?",
		"今日も一日お疲れ様でした。何か楽しいことはありましたか？",
		"Winding down for the day? What's on your mind?",
		"夜になりましたね。今日はどんな一日でしたか？",
	}
	nightGreetings = []string{
		"夜更かしですね。何をしていますか？",
		"Still up? What's keeping you awake?",
		"静かな夜ですね。何か考え事でもしていますか？",
		"The quiet hours are sometimes the best for deep conversations. Anything on your mind?",
		"夜中ですが、まだ起きている人はいますか？",
	}
)

// Greetings returns the greetings for the time of day of now.
func Greetings(now time.Time) []string {
	switch hour := now.Hour(); {
	case hour >= 5 && hour < 12:
		return morningGreetings
	case hour >= 12 && hour < 18:
		return afternoonGreetings
	case hour >= 18:
		return eveningGreetings
	default:
		return nightGreetings
	}
}

// Greeting picks a random greeting for the time of day of now.
func Greeting(now time.Time) string {
	greetings := Greetings(now)
	return greetings[rand.IntN(len(greetings))]
}
