package classify

import (
	"testing"

	"sl-go/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		want    *model.Classification
		matched bool
	}{
		{"2024-05-01_Wedding_FOOTAGE", &model.Classification{Date: "2024-05-01", ProjectName: "Wedding", Type: model.TypeFootage}, true},
		{"2024-05-01_Wedding_videos", &model.Classification{Date: "2024-05-01", ProjectName: "Wedding", Type: model.TypeFootage}, true},
		{"2024-05-01_Wedding_Video", &model.Classification{Date: "2024-05-01", ProjectName: "Wedding", Type: model.TypeFootage}, true},
		{"2024-05-01_Wedding_Fotos", &model.Classification{Date: "2024-05-01", ProjectName: "Wedding", Type: model.TypePhotos}, true},
		{"2024-05-01_Wedding_PROXY", &model.Classification{Date: "2024-05-01", ProjectName: "Wedding", Type: model.TypeProxies}, true},
		{"2024-05-01_Wedding_bts", &model.Classification{Date: "2024-05-01", ProjectName: "Wedding", Type: model.TypeBTS}, true},
		{"2024-05-01_Wedding_ WORKING ", &model.Classification{Date: "2024-05-01", ProjectName: "Wedding", Type: model.TypeWorking}, true},
		{"2024-05-01_Big Wedding _PHOTOS", &model.Classification{Date: "2024-05-01", ProjectName: "Big Wedding", Type: model.TypePhotos}, true},
		{"2024-05-01_Client_Name_FOOTAGE", &model.Classification{Date: "2024-05-01", ProjectName: "Client_Name", Type: model.TypeFootage}, true},
		{"2024-05-01_Wedding", &model.Classification{Date: "2024-05-01", ProjectName: "Wedding", Type: model.TypeProject}, true},
		{"2024-05-01_Wedding_POST", nil, false},
		{"2024-13-40_Wedding_FOOTAGE", nil, false},
		{"2023-02-29_Wedding", nil, false},
		{"Wedding_FOOTAGE", nil, false},
		{"24-05-01_Wedding_FOOTAGE", nil, false},
		{"random folder", nil, false},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.name)
			if ok != tt.matched {
				t.Fatalf("Classify(%q) matched = %v, want %v", tt.name, ok, tt.matched)
			}
			if !ok {
				if got != nil {
					t.Errorf("Classify(%q) = %+v, want nil", tt.name, got)
				}
				return
			}
			if *got != *tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.name, got, tt.want)
			}
		})
	}
}

func TestClassify_EveryAliasIsCanonical(t *testing.T) {
	for alias, want := range Aliases {
		got, ok := Classify("2024-01-02_Shoot_" + alias)
		if !ok {
			t.Errorf("alias %s not recognized", alias)
			continue
		}
		if got.Type != want {
			t.Errorf("alias %s classified as %s, want %s", alias, got.Type, want)
		}
	}
}
