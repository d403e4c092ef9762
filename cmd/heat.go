/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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
package cmd

import (
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"

	"github.com/notargets/goheat/InputParameters"
	"github.com/notargets/goheat/materials"
	"github.com/notargets/goheat/model_problems/Heat2D"
	"github.com/notargets/goheat/writefiles"
)

type RunHeat struct {
	ConfigFile string
}

func (rh *RunHeat) processInput() (hp *InputParameters.HeatParameters, err error) {
	var path string
	if path, err = homedir.Expand(rh.ConfigFile); err != nil {
		return
	}
	return InputParameters.Load(path)
}

func (rh *RunHeat) Run() (err error) {
	var hp *InputParameters.HeatParameters
	if hp, err = rh.processInput(); err != nil {
		return
	}
	if hp.EnableConsole {
		hp.Print()
	}
	if hp.Profile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}
	var steel *materials.Steel
	if steel, err = materials.NewSteel(hp.Speed, hp.EnvT); err != nil {
		return
	}
	files := writefiles.NewFiles(hp)
	defer func() {
		if cerr := files.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = Heat2D.Run(hp, steel, files)
	return
}
