/*
Copyright 2025 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gravitational/dashboard-automation/lib/lifecycle"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

func main() {
	app := kingpin.New("dashboard-automation", "OpenSearch UI dashboard provisioning hook")
	if err := run(app); err != nil {
		log.Error(trace.DebugReport(err))
		os.Exit(255)
	}
}

func run(app *kingpin.Application) error {
	var debug bool
	app.Flag("debug", "Enable debug logging").BoolVar(&debug)
	cserve := app.Command("serve", "Handle custom resource events as an AWS Lambda function").Default()
	cinvoke := app.Command("invoke", "Handle a single event read from a file, for local testing")
	eventPath := cinvoke.Flag("event", "Path to a JSON file with the CloudFormation event").Required().String()

	command, err := app.Parse(os.Args[1:])
	if err != nil {
		return trace.Wrap(err)
	}
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	handler, err := newHandler()
	if err != nil {
		return trace.Wrap(err)
	}
	switch command {
	case cserve.FullCommand():
		lambda.Start(cfn.LambdaWrap(customResource(handler)))
		return nil
	case cinvoke.FullCommand():
		return trace.Wrap(invoke(handler, *eventPath))
	}
	return trace.BadParameter("unknown command %q", command)
}

func newHandler() (*lifecycle.Handler, error) {
	// Credentials come from the execution role via the default chain,
	// never from flags or configuration files
	sess, err := session.NewSession()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	handler, err := lifecycle.NewHandler(lifecycle.Config{
		Credentials: sess.Config.Credentials,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return handler, nil
}

// customResource adapts the lifecycle handler to the Lambda custom resource
// contract. A FAILED outcome is returned as an error so the wrapper reports
// it, with the reason, on the orchestrator's response URL.
func customResource(handler *lifecycle.Handler) cfn.CustomResourceFunction {
	return func(ctx context.Context, raw cfn.Event) (string, map[string]interface{}, error) {
		event, err := lifecycle.FromCFN(raw)
		if err != nil {
			return raw.PhysicalResourceID, nil, trace.Wrap(err)
		}
		response := handler.Handle(ctx, event)
		data := make(map[string]interface{}, len(response.Data))
		for key, value := range response.Data {
			data[key] = value
		}
		if response.Status == lifecycle.StatusFailed {
			return response.PhysicalResourceID, data, trace.Errorf("%v", response.Reason)
		}
		return response.PhysicalResourceID, data, nil
	}
}

func invoke(handler *lifecycle.Handler, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return trace.ConvertSystemError(err)
	}
	var cfnEvent cfn.Event
	if err := json.Unmarshal(raw, &cfnEvent); err != nil {
		return trace.Wrap(err)
	}
	event, err := lifecycle.FromCFN(cfnEvent)
	if err != nil {
		return trace.Wrap(err)
	}
	response := handler.Handle(context.Background(), event)
	output, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return trace.Wrap(err)
	}
	fmt.Println(string(output))
	if response.Status == lifecycle.StatusFailed {
		return trace.Errorf("event failed: %v", response.Reason)
	}
	return nil
}
