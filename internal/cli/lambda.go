package cli

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	runtimepkg "github.com/drblury/vehicleflow/internal/runtime"
	loggingpkg "github.com/drblury/vehicleflow/internal/runtime/logging"
)

// startLambda is replaced in tests; lambda.Start never returns.
var startLambda = func(handler interface{}) {
	lambda.Start(handler)
}

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda function subscribed to SNS",
	Long: `Starts the Lambda runtime. Every invocation's SNS event is processed as one
batch and completions are published to COMPLETION_TOPIC.`,
	RunE: runLambda,
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}

func runLambda(cmd *cobra.Command, _ []string) error {
	svc, err := runtimepkg.TryNewService(cmd.Context(), cfg, loggingpkg.NewSlogServiceLogger(logger), runtimepkg.ServiceDependencies{})
	if err != nil {
		return err
	}

	startLambda(svc.HandleSNSEvent)
	return svc.Close()
}
