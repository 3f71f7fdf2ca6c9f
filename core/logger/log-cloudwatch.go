// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package logger

import (
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs/cloudwatchlogsiface"
)

// CloudWatch caps a PutLogEvents batch at 10000 events
const cloudWatchMaxBatchSize = 512

// CloudWatchLogger - ships log lines to a CloudWatch log stream, used when
// the pipeline runs on AWS batch workers. Events are buffered and flushed
// when the batch fills or the flush interval passes, and on Close.
type CloudWatchLogger struct {
	svc           cloudwatchlogsiface.CloudWatchLogsAPI
	logGroupName  string
	logStreamName string
	logLevel      LogLevel
	flushInterval time.Duration

	mu        sync.Mutex
	events    []*cloudwatchlogs.InputLogEvent
	lastFlush time.Time
	seqToken  *string
}

// InitCloudWatchLogger - creates the log group/stream if needed and returns a ready logger
func InitCloudWatchLogger(svc cloudwatchlogsiface.CloudWatchLogsAPI, logGroupName string, logStreamName string, logLevel LogLevel, flushInterval time.Duration) (*CloudWatchLogger, error) {
	_, err := svc.CreateLogGroup(&cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(logGroupName),
	})
	if err != nil && !isAlreadyExists(err) {
		return nil, err
	}

	_, err = svc.CreateLogStream(&cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(logGroupName),
		LogStreamName: aws.String(logStreamName),
	})
	if err != nil && !isAlreadyExists(err) {
		return nil, err
	}

	return &CloudWatchLogger{
		svc:           svc,
		logGroupName:  logGroupName,
		logStreamName: logStreamName,
		logLevel:      logLevel,
		flushInterval: flushInterval,
		lastFlush:     time.Now(),
	}, nil
}

func isAlreadyExists(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == cloudwatchlogs.ErrCodeResourceAlreadyExistsException
	}
	return false
}

func (l *CloudWatchLogger) Printf(level LogLevel, format string, a ...interface{}) {
	txt := logLevelPrefix[level] + ": " + fmt.Sprintf(format, a...)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, &cloudwatchlogs.InputLogEvent{
		Message:   aws.String(txt),
		Timestamp: aws.Int64(time.Now().UnixMilli()),
	})

	if len(l.events) >= cloudWatchMaxBatchSize || time.Since(l.lastFlush) > l.flushInterval {
		l.flush()
	}
}
func (l *CloudWatchLogger) Debugf(format string, a ...interface{}) {
	if l.logLevel <= LogDebug {
		l.Printf(LogDebug, format, a...)
	}
}
func (l *CloudWatchLogger) Infof(format string, a ...interface{}) {
	if l.logLevel <= LogInfo {
		l.Printf(LogInfo, format, a...)
	}
}
func (l *CloudWatchLogger) Errorf(format string, a ...interface{}) {
	l.Printf(LogError, format, a...)
}

func (l *CloudWatchLogger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logLevel = level
}
func (l *CloudWatchLogger) GetLogLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logLevel
}

// Close - flushes anything still buffered
func (l *CloudWatchLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flush()
}

// flush - caller must hold mu. Send failures drop the batch, logging must
// never take the pipeline down.
func (l *CloudWatchLogger) flush() {
	l.lastFlush = time.Now()
	if len(l.events) <= 0 {
		return
	}

	result, err := l.svc.PutLogEvents(&cloudwatchlogs.PutLogEventsInput{
		LogEvents:     l.events,
		LogGroupName:  aws.String(l.logGroupName),
		LogStreamName: aws.String(l.logStreamName),
		SequenceToken: l.seqToken,
	})
	if err == nil {
		l.seqToken = result.NextSequenceToken
	}
	l.events = nil
}
