package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteTokenGuide prints how to obtain a Civitai API key and where it is read from
func WriteTokenGuide(w io.Writer, tokenFile string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "CIVITAI API KEY")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Public images download without a key. A key lets the API apply your")
	fmt.Fprintln(w, "account's content settings to the listing.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Sign in at https://civitai.com")
	fmt.Fprintln(w, "2. Open Account Settings and scroll to 'API Keys'")
	fmt.Fprintln(w, "3. Click 'Add API key', name it and copy the value")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The key is looked up in this order:")
	fmt.Fprintf(w, "   - the file %s in the working directory\n", tokenFile)
	fmt.Fprintf(w, "   - the %s environment variable\n", EnvToken)
	fmt.Fprintln(w, "   - the system keyring (civitdl auth login)")
	fmt.Fprintln(w, "   - an encrypted file in the civitdl config directory")
	fmt.Fprintln(w)
}
