/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package activeobject

import (
	"github.com/sirupsen/logrus"
)

// logrusCallback reports worker failures through a logrus.FieldLogger,
// the severity levels mapping directly onto logrus levels.
type logrusCallback struct {
	log logrus.FieldLogger
}

// NewLogrusCallback builds a Callback that reports through the given
// logrus.FieldLogger. A nil logger falls back to logrus.StandardLogger().
func NewLogrusCallback(log logrus.FieldLogger) Callback {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &logrusCallback{log: log}
}

func (l *logrusCallback) Info(msg string) {
	l.log.Info(msg)
}

func (l *logrusCallback) Warning(msg string) {
	l.log.Warning(msg)
}

func (l *logrusCallback) Error(msg string) {
	l.log.Error(msg)
}

func (l *logrusCallback) Critical(msg string) {
	l.log.WithField("severity", "critical").Error(msg)
}
