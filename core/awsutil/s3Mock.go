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

package awsutil

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// MockS3Client - expect/replay S3 mock for unit tests. Queue the expected
// inputs and the outputs to hand back, then call FinishTest() at the end
// (defer it!) to verify every expected call arrived and nothing is left over.
// A nil queued output makes that call return an error.
type MockS3Client struct {
	mutex sync.Mutex

	s3iface.S3API

	// Expected requests
	ExpListObjectsV2Input []s3.ListObjectsV2Input
	ExpGetObjectInput     []s3.GetObjectInput
	ExpPutObjectInput     []s3.PutObjectInput
	ExpDeleteObjectInput  []s3.DeleteObjectInput
	ExpCopyObjectInput    []s3.CopyObjectInput

	// Responses replayed as each request comes in
	QueuedListObjectsV2Output []*s3.ListObjectsV2Output
	QueuedGetObjectOutput     []*s3.GetObjectOutput
	QueuedPutObjectOutput     []*s3.PutObjectOutput
	QueuedDeleteObjectOutput  []*s3.DeleteObjectOutput
	QueuedCopyObjectOutput    []*s3.CopyObjectOutput
}

const errNoMoreInputsExpected = "No more inputs expected for "
const errWrongInput = "Incorrect input in "
const errNothingToReturn = "Nothing to return from "
const errReturningError = "Returning error from "

// FinishTest - MUST be called (deferred) at the end of every test using the mock.
// Example tests get the failure printed so it lands in their output diff.
func (m *MockS3Client) FinishTest() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	err := m.getFinishTestResult()
	if err != nil {
		fmt.Println(err)
	}
	return err
}

func (m *MockS3Client) getFinishTestResult() error {
	// Expecting no inputs left
	if len(m.ExpListObjectsV2Input) > 0 {
		return errors.New("Test expected more ListObjectsV2 calls")
	}
	if len(m.ExpGetObjectInput) > 0 {
		return errors.New("Test expected more GetObject calls")
	}
	if len(m.ExpPutObjectInput) > 0 {
		return errors.New("Test expected more PutObject calls")
	}
	if len(m.ExpDeleteObjectInput) > 0 {
		return errors.New("Test expected more DeleteObject calls")
	}
	if len(m.ExpCopyObjectInput) > 0 {
		return errors.New("Test expected more CopyObject calls")
	}

	// Expecting nothing left to output
	if len(m.QueuedListObjectsV2Output) > 0 {
		return errors.New("Remaining output ListObjectsV2")
	}
	if len(m.QueuedGetObjectOutput) > 0 {
		return errors.New("Remaining output GetObject")
	}
	if len(m.QueuedPutObjectOutput) > 0 {
		return errors.New("Remaining output PutObject")
	}
	if len(m.QueuedDeleteObjectOutput) > 0 {
		return errors.New("Remaining output DeleteObject")
	}
	if len(m.QueuedCopyObjectOutput) > 0 {
		return errors.New("Remaining output CopyObject")
	}

	return nil
}

// checkStrictOrder - pops the next expected input string and compares
func checkStrictOrder(name string, expStr string, inpStr string) error {
	if expStr != inpStr {
		return fmt.Errorf("%v expected: \"%v\" S3 recvd: \"%v\"", errWrongInput+name, expStr, inpStr)
	}
	return nil
}

func (m *MockS3Client) ListObjectsV2(input *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	name := "ListObjectsV2"
	if len(m.ExpListObjectsV2Input) <= 0 {
		return nil, errors.New(errNoMoreInputsExpected + name)
	}

	expStr := m.ExpListObjectsV2Input[0].String()
	m.ExpListObjectsV2Input = m.ExpListObjectsV2Input[1:]

	if err := checkStrictOrder(name, expStr, input.String()); err != nil {
		return nil, err
	}

	if len(m.QueuedListObjectsV2Output) <= 0 {
		return nil, errors.New(errNothingToReturn + name)
	}
	result := m.QueuedListObjectsV2Output[0]
	m.QueuedListObjectsV2Output = m.QueuedListObjectsV2Output[1:]

	if result == nil {
		return nil, errors.New(errReturningError + name)
	}
	return result, nil
}

func (m *MockS3Client) GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	name := "GetObject"
	if len(m.ExpGetObjectInput) <= 0 {
		return nil, errors.New(errNoMoreInputsExpected + name)
	}

	expStr := m.ExpGetObjectInput[0].String()
	m.ExpGetObjectInput = m.ExpGetObjectInput[1:]

	if err := checkStrictOrder(name, expStr, input.String()); err != nil {
		return nil, err
	}

	if len(m.QueuedGetObjectOutput) <= 0 {
		return nil, errors.New(errNothingToReturn + name)
	}
	result := m.QueuedGetObjectOutput[0]
	m.QueuedGetObjectOutput = m.QueuedGetObjectOutput[1:]

	if result == nil {
		// Missing objects come back as NoSuchKey so IsNotFoundError sees the real thing
		return nil, awserr.New(s3.ErrCodeNoSuchKey, errReturningError+name, nil)
	}
	return result, nil
}

func getAsStr(r io.Reader) string {
	if r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "ERROR GETTING DATA"
	}
	return string(data)
}

func (m *MockS3Client) PutObject(input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	name := "PutObject"
	if len(m.ExpPutObjectInput) <= 0 {
		return nil, errors.New(errNoMoreInputsExpected + name)
	}

	expItem := m.ExpPutObjectInput[0]
	m.ExpPutObjectInput = m.ExpPutObjectInput[1:]

	// Bodies are readers so compare bucket/key/content separately
	if *input.Bucket != *expItem.Bucket || *input.Key != *expItem.Key {
		return nil, fmt.Errorf("%v%v expected: \"%v/%v\" S3 recvd: \"%v/%v\"", errWrongInput, name,
			*expItem.Bucket, *expItem.Key, *input.Bucket, *input.Key)
	}

	expBody := getAsStr(expItem.Body)
	inpBody := getAsStr(input.Body)
	if expBody != inpBody {
		return nil, fmt.Errorf("%v%v body expected: \"%v\" S3 recvd: \"%v\"", errWrongInput, name, expBody, inpBody)
	}

	if len(m.QueuedPutObjectOutput) <= 0 {
		return nil, errors.New(errNothingToReturn + name)
	}
	result := m.QueuedPutObjectOutput[0]
	m.QueuedPutObjectOutput = m.QueuedPutObjectOutput[1:]

	if result == nil {
		return nil, errors.New(errReturningError + name)
	}
	return result, nil
}

func (m *MockS3Client) DeleteObject(input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	name := "DeleteObject"
	if len(m.ExpDeleteObjectInput) <= 0 {
		return nil, errors.New(errNoMoreInputsExpected + name)
	}

	expStr := m.ExpDeleteObjectInput[0].String()
	m.ExpDeleteObjectInput = m.ExpDeleteObjectInput[1:]

	if err := checkStrictOrder(name, expStr, input.String()); err != nil {
		return nil, err
	}

	if len(m.QueuedDeleteObjectOutput) <= 0 {
		return nil, errors.New(errNothingToReturn + name)
	}
	result := m.QueuedDeleteObjectOutput[0]
	m.QueuedDeleteObjectOutput = m.QueuedDeleteObjectOutput[1:]

	if result == nil {
		return nil, errors.New(errReturningError + name)
	}
	return result, nil
}

func (m *MockS3Client) CopyObject(input *s3.CopyObjectInput) (*s3.CopyObjectOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	name := "CopyObject"
	if len(m.ExpCopyObjectInput) <= 0 {
		return nil, errors.New(errNoMoreInputsExpected + name)
	}

	expStr := m.ExpCopyObjectInput[0].String()
	m.ExpCopyObjectInput = m.ExpCopyObjectInput[1:]

	if err := checkStrictOrder(name, expStr, input.String()); err != nil {
		return nil, err
	}

	if len(m.QueuedCopyObjectOutput) <= 0 {
		return nil, errors.New(errNothingToReturn + name)
	}
	result := m.QueuedCopyObjectOutput[0]
	m.QueuedCopyObjectOutput = m.QueuedCopyObjectOutput[1:]

	if result == nil {
		return nil, errors.New(errReturningError + name)
	}
	return result, nil
}
