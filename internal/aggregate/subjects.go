package aggregate

import "mailintel/internal/model"

// ThreadSubjects 取每个线程首封邮件的主题
func ThreadSubjects(messages []model.Message) map[string]string {
	out := make(map[string]string)
	for _, m := range messages {
		if _, ok := out[m.ThreadID]; !ok {
			out[m.ThreadID] = m.Subject
		}
	}
	return out
}
