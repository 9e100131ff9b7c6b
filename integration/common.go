package integration

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/template"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/oliveagle/jsonpath"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/internal/util"
)

const (
	// EndpointEnv overrides the address of the running service under test
	EndpointEnv = "DID_SERVICE_ENDPOINT"

	defaultEndpoint = "http://localhost:3000/"
	version         = "v1/"
	MaxElapsedTime  = 30 * time.Second
)

var (
	//go:embed testdata
	testVectors embed.FS
	client      = &http.Client{Timeout: 90 * time.Second}
	endpoint    = defaultEndpoint
)

func init() {
	// Treats "\n" as new lines, see https://github.com/sirupsen/logrus/issues/608
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableQuote: true,
		ForceColors:  true,
	})
	if e, ok := os.LookupEnv(EndpointEnv); ok && e != "" {
		endpoint = e
	}
}

// WaitForReadiness polls the readiness endpoint until every service reports ready.
func WaitForReadiness() error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = MaxElapsedTime
	return backoff.Retry(func() error {
		output, err := get(endpoint + "readiness")
		if err != nil {
			return err
		}
		status, err := getJSONElement(output, "$.status.status")
		if err != nil {
			return backoff.Permanent(err)
		}
		if status != "ready" {
			return fmt.Errorf("service not ready: %s", status)
		}
		return nil
	}, expBackoff)
}

func CreateDIDKey() (string, error) {
	logrus.Println("\n\nCreate a did:key")
	output, err := put(endpoint+version+"dids/key", getJSONFromFile("did-key-input.json"))
	if err != nil {
		return "", errors.Wrapf(err, "did endpoint with output: %s", output)
	}

	return output, nil
}

type didWebParams struct {
	Domain string
	Path   string
}

func CreateDIDWeb(params didWebParams) (string, error) {
	logrus.Println("\n\nCreate a did:web")
	input, err := resolveTemplate(params, "did-web-input.json")
	if err != nil {
		return "", err
	}

	output, err := put(endpoint+version+"dids/web", input)
	if err != nil {
		return "", errors.Wrapf(err, "did endpoint with output: %s", output)
	}

	return output, nil
}

type didEBSIParams struct {
	Version int
}

func CreateDIDEBSI(params didEBSIParams) (string, error) {
	logrus.Println("\n\nCreate a did:ebsi")
	input, err := resolveTemplate(params, "did-ebsi-input.json")
	if err != nil {
		return "", err
	}

	output, err := put(endpoint+version+"dids/ebsi", input)
	if err != nil {
		return "", errors.Wrapf(err, "did endpoint with output: %s", output)
	}

	return output, nil
}

func ResolveDID(did string) (string, error) {
	logrus.Println("\n\nResolve a did")
	output, err := get(endpoint + version + "dids/resolver/" + url.PathEscape(did))
	if err != nil {
		return "", errors.Wrapf(err, "did resolver with output: %s", output)
	}

	return output, nil
}

func GetCreatedDID(did string) (string, error) {
	output, err := get(endpoint + version + "dids/created/" + url.PathEscape(did))
	if err != nil {
		return "", errors.Wrapf(err, "getting created did with output: %s", output)
	}

	return output, nil
}

func ListCreatedDIDs() (string, error) {
	output, err := get(endpoint + version + "dids/created")
	if err != nil {
		return "", errors.Wrapf(err, "listing created dids with output: %s", output)
	}

	return output, nil
}

func DeleteDID(did string) error {
	logrus.Println("\n\nDelete a did")
	output, err := send(http.MethodDelete, endpoint+version+"dids/created/"+url.PathEscape(did), "")
	if err != nil {
		return errors.Wrapf(err, "deleting did with output: %s", output)
	}

	return nil
}

func ImportKeys(did string) (string, error) {
	logrus.Println("\n\nImport the keys of a did")
	output, err := send(http.MethodPost, endpoint+version+"dids/import/"+url.PathEscape(did), "")
	if err != nil {
		return "", errors.Wrapf(err, "importing keys with output: %s", output)
	}

	return output, nil
}

type generateKeyParams struct {
	Algorithm string
}

func GenerateKey(params generateKeyParams) (string, error) {
	logrus.Println("\n\nGenerate a key")
	input, err := resolveTemplate(params, "generate-key-input.json")
	if err != nil {
		return "", err
	}

	output, err := put(endpoint+version+"keys", input)
	if err != nil {
		return "", errors.Wrapf(err, "key store endpoint with output: %s", output)
	}

	return output, nil
}

func GetKeyDetails(id string) (string, error) {
	output, err := get(endpoint + version + "keys/" + url.PathEscape(id))
	if err != nil {
		return "", errors.Wrapf(err, "getting key details with output: %s", output)
	}

	return output, nil
}

func resolveTemplate(input any, fileName string) (string, error) {
	t, err := template.ParseFS(testVectors, "testdata/"+fileName)
	if err != nil {
		return "", errors.Wrap(err, "parsing input file")
	}

	var b bytes.Buffer
	if err = t.Execute(&b, input); err != nil {
		return "", err
	}
	return b.String(), nil
}

func compactJSONOutput(jsonString string) string {
	jsonBytes := []byte(jsonString)
	buffer := new(bytes.Buffer)
	if err := json.Compact(buffer, jsonBytes); err != nil {
		logrus.Println(err)
		panic(err)
	}

	return buffer.String()
}

func getJSONElement(jsonString string, jsonPath string) (string, error) {
	jsonMap := make(map[string]any)
	if err := json.Unmarshal([]byte(jsonString), &jsonMap); err != nil {
		return "", errors.Wrap(err, "unmarshalling json string")
	}

	element, err := jsonpath.JsonPathLookup(jsonMap, jsonPath)
	if err != nil {
		return "", errors.Wrap(err, "finding element in json string")
	}

	if element == nil {
		return "<nil>", nil
	}
	var elementStr string
	switch element.(type) {
	case bool, string, float64:
		elementStr = fmt.Sprintf("%v", element)
	case map[string]any, []any:
		data, err := json.Marshal(element)
		if err != nil {
			return "", err
		}
		elementStr = compactJSONOutput(string(data))
	}

	return elementStr, nil
}

func get(url string) (string, error) {
	return send(http.MethodGet, url, "")
}

func put(url string, json string) (string, error) {
	return send(http.MethodPut, url, json)
}

func send(method, url, json string) (string, error) {
	logrus.Printf("\nPerforming %s request to:  %s \n\nwith data: \n%s\n", method, url, json)

	var body io.Reader
	if json != "" {
		body = bytes.NewBufferString(json)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return "", errors.Wrap(err, "building http req")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "client http client")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "parsing body")
	}

	bodyStr := string(respBody)
	if !util.Is2xxResponse(resp.StatusCode) {
		return "", fmt.Errorf("status code %v not in the 200s. body: %s", resp.StatusCode, bodyStr)
	}

	logrus.Println("\nOutput:")
	logrus.Println(bodyStr)

	return bodyStr, nil
}

func getJSONFromFile(fileName string) string {
	b, _ := testVectors.ReadFile("testdata/" + fileName)
	return string(b)
}
