/*
Copyright 2011-2025 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"
	"strings"

	jxlans "github.com/flanglet/jxlans"
	"github.com/flanglet/jxlans/entropy"
	"sigs.k8s.io/yaml"
)

// Encoder options read from a YAML (or JSON) file. Example:
//
//	clustering: best
//	uintMethod: fast
//	lz77Method: optimal
//	histogramStrategy: precise
//	maxHistograms: 32
//	contexts: 24
type fileConfig struct {
	Clustering        string `json:"clustering"`
	UintMethod        string `json:"uintMethod"`
	LZ77Method        string `json:"lz77Method"`
	HistogramStrategy string `json:"histogramStrategy"`
	MaxHistograms     int    `json:"maxHistograms"`
	FuzzerFriendly    bool   `json:"fuzzerFriendly"`
	Contexts          uint   `json:"contexts"`
	ImageWidth        uint   `json:"imageWidth"`
}

var (
	_CLUSTERING_NAMES = map[string]int{
		"fastest": entropy.CLUSTERING_FASTEST,
		"fast":    entropy.CLUSTERING_FAST,
		"best":    entropy.CLUSTERING_BEST,
	}

	_UINT_METHOD_NAMES = map[string]int{
		"none":       entropy.UINT_NONE,
		"000":        entropy.UINT_000,
		"fast":       entropy.UINT_FAST,
		"contextmap": entropy.UINT_CONTEXT_MAP,
		"best":       entropy.UINT_BEST,
	}

	_LZ77_METHOD_NAMES = map[string]int{
		"none":    entropy.LZ77_NONE,
		"rle":     entropy.LZ77_RLE,
		"lz77":    entropy.LZ77_LZ77,
		"optimal": entropy.LZ77_OPTIMAL,
	}

	_HISTOGRAM_STRATEGY_NAMES = map[string]int{
		"fast":        entropy.ANS_HISTOGRAM_FAST,
		"approximate": entropy.ANS_HISTOGRAM_APPROXIMATE,
		"precise":     entropy.ANS_HISTOGRAM_PRECISE,
	}
)

func lookupOption(names map[string]int, option, value string, res *int) error {
	if len(value) == 0 {
		return nil
	}

	v, found := names[strings.ToLower(value)]

	if found == false {
		return jxlans.NewError(fmt.Sprintf("Invalid %s in configuration: %s", option, value), jxlans.ERR_INVALID_PARAM)
	}

	*res = v
	return nil
}

// ParseConfig reads the encoder options of a YAML document into the
// container context: the histogram parameters under "params", the number of
// contexts under "contexts" and the image width under "imageWidth".
func ParseConfig(data []byte, ctx map[string]any) error {
	var cfg fileConfig

	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return jxlans.NewError("Invalid configuration: "+err.Error(), jxlans.ERR_INVALID_PARAM)
	}

	params := entropy.NewHistogramParams()
	params.MaxHistograms = cfg.MaxHistograms
	params.FuzzerFriendly = cfg.FuzzerFriendly

	if err := lookupOption(_CLUSTERING_NAMES, "clustering", cfg.Clustering, &params.Clustering); err != nil {
		return err
	}

	if err := lookupOption(_UINT_METHOD_NAMES, "uint method", cfg.UintMethod, &params.UintMethod); err != nil {
		return err
	}

	if err := lookupOption(_LZ77_METHOD_NAMES, "LZ77 method", cfg.LZ77Method, &params.LZ77Method); err != nil {
		return err
	}

	if err := lookupOption(_HISTOGRAM_STRATEGY_NAMES, "histogram strategy", cfg.HistogramStrategy, &params.HistogramStrategy); err != nil {
		return err
	}

	if err := params.Validate(); err != nil {
		return err
	}

	ctx["params"] = params

	if cfg.Contexts > 0 {
		ctx["contexts"] = cfg.Contexts
	}

	if cfg.ImageWidth > 0 {
		ctx["imageWidth"] = cfg.ImageWidth
	}

	return nil
}

// LoadConfig reads the configuration file 'name' (see ParseConfig)
func LoadConfig(name string, ctx map[string]any) error {
	data, err := os.ReadFile(name)

	if err != nil {
		return jxlans.NewError(fmt.Sprintf("Cannot read configuration file '%s': %v", name, err), jxlans.ERR_OPEN_FILE)
	}

	return ParseConfig(data, ctx)
}
